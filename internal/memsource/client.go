package memsource

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-resty/resty/v2"
	"github.com/oukeidos/posync/internal/apperrors"
	"github.com/oukeidos/posync/internal/httpclient"
	"github.com/oukeidos/posync/internal/logger"
)

const (
	DefaultBaseURL  = "https://cloud.memsource.com/web"
	DefaultPageSize = 50
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusNew       Status = "NEW"
	StatusEmailed   Status = "EMAILED"
	StatusAccepted  Status = "ACCEPTED"
	StatusRejected  Status = "REJECTED"
	StatusDelivered Status = "DELIVERED"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

// UpdatableStatuses are the job states whose source may be replaced.
var UpdatableStatuses = []Status{
	StatusNew,
	StatusEmailed,
	StatusAccepted,
	StatusDelivered,
	StatusCompleted,
}

// Job is the vendor's unit of translation work.
type Job struct {
	UID        string `json:"uid"`
	Filename   string `json:"filename"`
	Status     Status `json:"status"`
	TargetLang string `json:"targetLang"`
}

// Options configures the HTTP side of a Client.
type Options struct {
	BaseURL    string
	PageSize   int
	HTTPClient *http.Client
}

func (o Options) withDefaults() Options {
	if o.BaseURL == "" {
		o.BaseURL = DefaultBaseURL
	}
	if o.PageSize <= 0 {
		o.PageSize = DefaultPageSize
	}
	if o.HTTPClient == nil {
		o.HTTPClient = httpclient.GetDefaultClient()
	}
	return o
}

// Client is bound to one authenticated session and one project.
type Client struct {
	api        *resty.Client
	projectUID string
	pageSize   int
}

func NewClient(session Session, projectUID string, opts Options) *Client {
	opts = opts.withDefaults()
	api := httpclient.NewResty(opts.BaseURL, opts.HTTPClient).
		SetHeader("Authorization", "ApiToken "+session.Token)
	return &Client{api: api, projectUID: projectUID, pageSize: opts.PageSize}
}

// ProjectUID is the project every call is scoped to.
func (c *Client) ProjectUID() string {
	return c.projectUID
}

type jobPage struct {
	TotalElements int   `json:"totalElements"`
	TotalPages    int   `json:"totalPages"`
	PageSize      int   `json:"pageSize"`
	PageNumber    int   `json:"pageNumber"`
	Content       []Job `json:"content"`
}

type errorBody struct {
	ErrorCode        string `json:"errorCode"`
	ErrorDescription string `json:"errorDescription"`
}

// RejectedError is a non-OK answer to a single job request.
type RejectedError struct {
	Op         string
	StatusCode int
	ErrorCode  string
	Raw        string
}

func (e *RejectedError) Error() string {
	if e.ErrorCode != "" {
		return fmt.Sprintf("%s: status %d, error code %s", e.Op, e.StatusCode, e.ErrorCode)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.StatusCode, e.Raw)
}

func rejected(op string, resp *resty.Response) *RejectedError {
	e := &RejectedError{
		Op:         op,
		StatusCode: resp.StatusCode(),
		Raw:        httpclient.Snippet(resp.String(), httpclient.SnippetGraphemes),
	}
	var body errorBody
	if err := json.Unmarshal(resp.Body(), &body); err == nil {
		e.ErrorCode = body.ErrorCode
	}
	return e
}

// ListJobs returns every job of the project, optionally filtered by status.
// Pages are fetched one at a time; the page count comes from the first
// response.
func (c *Client) ListJobs(ctx context.Context, statuses ...Status) ([]Job, error) {
	first, err := c.jobPage(ctx, 0, statuses)
	if err != nil {
		return nil, err
	}
	jobs := []Job{}
	if first.TotalPages == 0 || len(first.Content) == 0 {
		return jobs, nil
	}
	jobs = append(jobs, first.Content...)
	for n := 1; n < first.TotalPages; n++ {
		page, err := c.jobPage(ctx, n, statuses)
		if err != nil {
			return nil, err
		}
		if len(page.Content) == 0 {
			break
		}
		jobs = append(jobs, page.Content...)
	}
	logger.Debug("Listed jobs", "project", c.projectUID, "jobs", len(jobs), "pages", first.TotalPages)
	return jobs, nil
}

func (c *Client) jobPage(ctx context.Context, number int, statuses []Status) (jobPage, error) {
	op := "list jobs"
	query := url.Values{}
	query.Set("pageNumber", strconv.Itoa(number))
	query.Set("pageSize", strconv.Itoa(c.pageSize))
	for _, s := range statuses {
		query.Add("status", string(s))
	}
	resp, err := c.api.R().
		SetContext(ctx).
		SetQueryParamsFromValues(query).
		SetHeader("Accept", "application/json").
		Get("/api2/v2/projects/" + url.PathEscape(c.projectUID) + "/jobs")
	if err != nil {
		return jobPage{}, httpclient.RequestError(op, err)
	}
	if resp.IsError() {
		return jobPage{}, httpclient.StatusError(op, resp)
	}
	var page jobPage
	if err := json.Unmarshal(resp.Body(), &page); err != nil {
		return jobPage{}, apperrors.New(apperrors.KindValidation, op+": response format was invalid", err)
	}
	return page, nil
}

// TargetFile downloads the translated file of a job.
func (c *Client) TargetFile(ctx context.Context, jobUID string) (string, error) {
	op := "download job " + jobUID
	resp, err := c.api.R().
		SetContext(ctx).
		Get("/api2/v1/projects/" + url.PathEscape(c.projectUID) + "/jobs/" + url.PathEscape(jobUID) + "/targetFile")
	if err != nil {
		return "", httpclient.RequestError(op, err)
	}
	if resp.IsError() {
		return "", httpclient.StatusError(op, resp)
	}
	return string(resp.Body()), nil
}

type jobRef struct {
	UID string `json:"uid"`
}

type updateSourceParams struct {
	Jobs         []jobRef `json:"jobs"`
	PreTranslate bool     `json:"preTranslate"`
}

type createJobParams struct {
	TargetLangs                  []string `json:"targetLangs"`
	UseProjectFileImportSettings bool     `json:"useProjectFileImportSettings"`
	PreTranslate                 bool     `json:"preTranslate"`
}

// UpdateSource replaces the source file of an existing job.
func (c *Client) UpdateSource(ctx context.Context, jobUID, filename, content string) error {
	params := updateSourceParams{Jobs: []jobRef{{UID: jobUID}}}
	return c.postFile(ctx, "update source "+filename, "/jobs/source", params, filename, content)
}

// CreateJob creates a job for one target language from content.
func (c *Client) CreateJob(ctx context.Context, filename, targetLang, content string) error {
	params := createJobParams{
		TargetLangs:                  []string{targetLang},
		UseProjectFileImportSettings: true,
	}
	return c.postFile(ctx, "create job "+filename, "/jobs", params, filename, content)
}

func (c *Client) postFile(ctx context.Context, op, path string, params any, filename, content string) error {
	header, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("%s: encode parameters: %w", op, err)
	}
	resp, err := c.api.R().
		SetContext(ctx).
		SetHeader("Memsource", string(header)).
		SetHeader("Content-Disposition", ContentDisposition(filename)).
		SetHeader("Content-Type", "application/octet-stream").
		SetBody([]byte(content)).
		Post("/api2/v1/projects/" + url.PathEscape(c.projectUID) + path)
	if err != nil {
		return httpclient.RequestError(op, err)
	}
	if resp.IsError() {
		return rejected(op, resp)
	}
	return nil
}

// ContentDisposition encodes filename per RFC 6266 so non-ASCII names survive.
func ContentDisposition(filename string) string {
	return "filename*=UTF-8''" + url.PathEscape(filename)
}
