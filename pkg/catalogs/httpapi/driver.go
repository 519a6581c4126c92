// Package httpapi provides a catalog driver for the SQL editor REST service.
//
// The service exposes
//
//	GET {url}/api/sql/tables/{datasourceId}
//	GET {url}/api/sql/table-schema/{datasourceId}?tableName={table}
//
// and wraps every payload in {code, message, data}; code "0000" is success.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/leapstack-labs/leapcomplete/pkg/catalog"
	"github.com/leapstack-labs/leapcomplete/pkg/core"
)

// SuccessCode marks a successful response envelope.
const SuccessCode = "0000"

// DefaultTimeout bounds a single request when options.timeout is unset.
const DefaultTimeout = 30 * time.Second

// APIError is a non-success envelope or HTTP status returned by the service.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("catalog service error %s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("catalog service returned HTTP %d: %s", e.Status, e.Message)
}

type envelope struct {
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type tableListDTO struct {
	DatabaseName string `json:"databaseName"`
	Tables       []struct {
		TableName    string `json:"tableName"`
		TableComment string `json:"tableComment"`
	} `json:"tables"`
}

type tableSchemaDTO struct {
	TableName    string `json:"tableName"`
	TableComment string `json:"tableComment"`
	Columns      []struct {
		ColumnName    string `json:"columnName"`
		DataType      string `json:"dataType"`
		ColumnComment string `json:"columnComment"`
		IsPrimaryKey  bool   `json:"isPrimaryKey"`
		IsNullable    bool   `json:"isNullable"`
	} `json:"columns"`
}

// Driver implements catalog.Driver against the REST service.
type Driver struct {
	client     *http.Client
	baseURL    *url.URL
	token      string
	datasource string
	logger     *slog.Logger
}

var _ catalog.Driver = (*Driver)(nil)

// New creates a new driver. If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Driver{logger: logger}
}

// Connect validates the configuration. No request is made until the first listing.
// cfg.URL is the service root, cfg.DatasourceID (or cfg.Database) the remote datasource.
func (d *Driver) Connect(_ context.Context, cfg catalog.Config) error {
	if cfg.URL == "" {
		return fmt.Errorf("catalog service url is required")
	}
	u, err := url.Parse(strings.TrimRight(cfg.URL, "/"))
	if err != nil {
		return fmt.Errorf("invalid catalog service url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid catalog service url %q: scheme must be http or https", cfg.URL)
	}

	datasource := cfg.DatasourceID
	if datasource == "" {
		datasource = cfg.Database
	}
	if datasource == "" {
		return fmt.Errorf("datasource_id is required")
	}

	timeout := DefaultTimeout
	if v, ok := cfg.Options["timeout"]; ok {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid timeout %q: %w", v, err)
		}
		timeout = parsed
	}

	d.client = &http.Client{Timeout: timeout}
	d.baseURL = u
	d.token = cfg.Token
	d.datasource = datasource
	return nil
}

// Close releases idle connections.
func (d *Driver) Close() error {
	if d.client != nil {
		d.client.CloseIdleConnections()
	}
	return nil
}

// ListTables returns the tables of the datasource.
func (d *Driver) ListTables(ctx context.Context) ([]core.TableStub, error) {
	var dto tableListDTO
	if err := d.get(ctx, "/api/sql/tables/"+url.PathEscape(d.datasource), nil, &dto); err != nil {
		return nil, err
	}

	stubs := make([]core.TableStub, 0, len(dto.Tables))
	for _, t := range dto.Tables {
		stubs = append(stubs, core.TableStub{Name: t.TableName, Comment: t.TableComment})
	}
	return stubs, nil
}

// DescribeTable returns the columns of a table.
func (d *Driver) DescribeTable(ctx context.Context, table string) (*core.TableDetail, error) {
	var dto tableSchemaDTO
	query := url.Values{"tableName": []string{table}}
	if err := d.get(ctx, "/api/sql/table-schema/"+url.PathEscape(d.datasource), query, &dto); err != nil {
		return nil, err
	}
	if len(dto.Columns) == 0 {
		return nil, fmt.Errorf("%w: %s", core.ErrTableNotFound, table)
	}

	detail := &core.TableDetail{
		Name:    table,
		Comment: dto.TableComment,
		Columns: make([]core.Column, 0, len(dto.Columns)),
	}
	for _, c := range dto.Columns {
		detail.Columns = append(detail.Columns, core.Column{
			Name:         c.ColumnName,
			DataType:     c.DataType,
			Comment:      c.ColumnComment,
			IsPrimaryKey: c.IsPrimaryKey,
			IsNullable:   c.IsNullable,
		})
	}
	return detail, nil
}

func (d *Driver) get(ctx context.Context, path string, query url.Values, out any) error {
	if d.client == nil {
		return catalog.ErrNotConnected
	}

	u := d.baseURL.JoinPath(path)
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if d.token != "" {
		req.Header.Set("Authorization", "Bearer "+d.token)
	}

	start := time.Now()
	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call catalog service: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return fmt.Errorf("failed to read catalog response: %w", err)
	}
	d.logger.Debug("catalog request",
		slog.String("path", u.Path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("elapsed", time.Since(start)))

	var env envelope
	decodeErr := json.Unmarshal(body, &env)
	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(body))
		if decodeErr == nil && env.Message != "" {
			msg = env.Message
		}
		return &APIError{Status: resp.StatusCode, Code: env.Code, Message: msg}
	}
	if decodeErr != nil {
		return fmt.Errorf("failed to decode catalog response: %w", decodeErr)
	}
	if env.Code != SuccessCode {
		return &APIError{Status: resp.StatusCode, Code: env.Code, Message: env.Message}
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return errors.New("catalog response has no data")
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("failed to decode catalog data: %w", err)
	}
	return nil
}
