package transifex

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/oukeidos/posync/internal/apperrors"
	"github.com/oukeidos/posync/internal/httpclient"
	"github.com/oukeidos/posync/internal/logger"
)

const (
	DefaultBaseURL      = "https://rest.api.transifex.com"
	DefaultOrganization = "foreman"
	DefaultProject      = "foreman"
	// DefaultPollInterval is the fixed wait between async job polls.
	DefaultPollInterval = 5 * time.Second
	// DefaultMaxPolls bounds how long a single async job may stay pending.
	DefaultMaxPolls = 120

	mediaType = "application/vnd.api+json"
)

// Options configures a Client. Zero values fall back to the defaults above.
type Options struct {
	BaseURL      string
	Organization string
	Project      string
	PollInterval time.Duration
	MaxPolls     int
	HTTPClient   *http.Client
}

// Client talks to the Transifex REST API v3.
type Client struct {
	api          *resty.Client
	files        *resty.Client
	baseURL      *url.URL
	organization string
	project      string
	pollInterval time.Duration
	maxPolls     int
}

func NewClient(token string, opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Organization == "" {
		opts.Organization = DefaultOrganization
	}
	if opts.Project == "" {
		opts.Project = DefaultProject
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.MaxPolls <= 0 {
		opts.MaxPolls = DefaultMaxPolls
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = httpclient.GetDefaultClient()
	}
	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid transifex base URL %q: %w", opts.BaseURL, err)
	}

	api := httpclient.NewResty(opts.BaseURL, httpclient.NoRedirect(opts.HTTPClient)).
		SetAuthToken(token).
		SetHeader("Accept", mediaType).
		SetHeader("Content-Type", mediaType)

	return &Client{
		api:          api,
		files:        httpclient.NewResty("", opts.HTTPClient),
		baseURL:      base,
		organization: opts.Organization,
		project:      opts.Project,
		pollInterval: opts.PollInterval,
		maxPolls:     opts.MaxPolls,
	}, nil
}

// ProjectID is the API identifier of the configured project.
func (c *Client) ProjectID() string {
	return fmt.Sprintf("o:%s:p:%s", c.organization, c.project)
}

// ResourceID is the API identifier of a resource in the configured project.
func (c *Client) ResourceID(slug string) string {
	return c.ProjectID() + ":r:" + slug
}

func languageID(code string) string {
	return "l:" + code
}

type identifier struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

type relationship struct {
	Data identifier `json:"data"`
}

type translationRelationships struct {
	Language relationship `json:"language"`
	Resource relationship `json:"resource"`
}

type links struct {
	Next string `json:"next"`
}

type languageList struct {
	Data []struct {
		ID         string `json:"id"`
		Attributes struct {
			Code string `json:"code"`
		} `json:"attributes"`
	} `json:"data"`
	Links links `json:"links"`
}

type resourceList struct {
	Data []struct {
		ID         string `json:"id"`
		Attributes struct {
			Slug string `json:"slug"`
			Name string `json:"name"`
		} `json:"attributes"`
	} `json:"data"`
	Links links `json:"links"`
}

type asyncRequest struct {
	Data asyncRequestData `json:"data"`
}

type asyncRequestData struct {
	Type          string                   `json:"type"`
	Attributes    any                      `json:"attributes"`
	Relationships translationRelationships `json:"relationships"`
}

type downloadAttributes struct {
	ContentEncoding string `json:"content_encoding"`
	FileType        string `json:"file_type"`
	Mode            string `json:"mode"`
	Pseudo          bool   `json:"pseudo"`
}

type uploadAttributes struct {
	Content         string `json:"content"`
	ContentEncoding string `json:"content_encoding"`
	FileType        string `json:"file_type"`
}

type asyncJob struct {
	Data struct {
		ID         string `json:"id"`
		Attributes struct {
			Status  string       `json:"status"`
			Errors  []jobError   `json:"errors"`
			Details UploadResult `json:"details"`
		} `json:"attributes"`
	} `json:"data"`
}

type jobError struct {
	Code   string `json:"code"`
	Detail string `json:"detail"`
}

// UploadResult carries the counters reported by a finished upload.
type UploadResult struct {
	TranslationsCreated int `json:"translations_created"`
	TranslationsUpdated int `json:"translations_updated"`
	TranslationsSkipped int `json:"translations_skipped"`
	TranslationsDeleted int `json:"translations_deleted"`
}

type errorEnvelope struct {
	Errors []struct {
		Status string `json:"status"`
		Code   string `json:"code"`
		Title  string `json:"title"`
		Detail string `json:"detail"`
	} `json:"errors"`
}

const (
	statusPending    = "pending"
	statusProcessing = "processing"
	statusSucceeded  = "succeeded"
	statusFailed     = "failed"
)

// ProjectLanguages returns the language codes enabled on the project.
func (c *Client) ProjectLanguages(ctx context.Context) ([]string, error) {
	var codes []string
	next := "/projects/" + url.PathEscape(c.ProjectID()) + "/languages"
	for next != "" {
		var page languageList
		if err := c.getJSON(ctx, "list project languages", next, nil, &page); err != nil {
			return nil, err
		}
		for _, item := range page.Data {
			codes = append(codes, item.Attributes.Code)
		}
		next = page.Links.Next
	}
	return codes, nil
}

// Resources returns the slugs of every resource in the project, following
// cursor pagination until the last page.
func (c *Client) Resources(ctx context.Context) ([]string, error) {
	var slugs []string
	next := "/resources"
	query := map[string]string{"filter[project]": c.ProjectID()}
	for next != "" {
		var page resourceList
		if err := c.getJSON(ctx, "list resources", next, query, &page); err != nil {
			return nil, err
		}
		for _, item := range page.Data {
			slugs = append(slugs, item.Attributes.Slug)
		}
		next = page.Links.Next
		// next links already carry the filter and cursor.
		query = nil
	}
	return slugs, nil
}

func (c *Client) getJSON(ctx context.Context, op, path string, query map[string]string, out any) error {
	req := c.api.R().SetContext(ctx)
	if query != nil {
		req.SetQueryParams(query)
	}
	resp, err := req.Get(path)
	if err != nil {
		return httpclient.RequestError(op, err)
	}
	if resp.IsError() {
		return statusError(op, resp)
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return apperrors.New(apperrors.KindValidation, op+": response format was invalid", err)
	}
	return nil
}

// DownloadTranslation runs an async translation download for one resource
// and language and blocks until the file is available.
func (c *Client) DownloadTranslation(ctx context.Context, slug, code string) (string, error) {
	op := fmt.Sprintf("download %s [%s]", slug, code)
	body := asyncRequest{Data: asyncRequestData{
		Type: "resource_translations_async_downloads",
		Attributes: downloadAttributes{
			ContentEncoding: "text",
			FileType:        "default",
			Mode:            "default",
		},
		Relationships: c.relationships(slug, code),
	}}
	jobID, err := c.submit(ctx, op, "/resource_translations_async_downloads", body)
	if err != nil {
		return "", err
	}

	var location string
	err = c.poll(ctx, op, func() (bool, error) {
		resp, err := c.api.R().SetContext(ctx).Get("/resource_translations_async_downloads/" + url.PathEscape(jobID))
		if err != nil {
			return false, httpclient.RequestError(op, err)
		}
		if resp.StatusCode() == http.StatusSeeOther {
			location = resp.Header().Get("Location")
			return true, nil
		}
		if resp.IsError() {
			return false, statusError(op, resp)
		}
		return c.jobDone(op, resp.Body(), nil)
	})
	if err != nil {
		return "", err
	}
	if location == "" {
		return "", apperrors.New(apperrors.KindValidation, op+": download finished without a file location", nil)
	}
	return c.fetch(ctx, op, location)
}

// UploadTranslation runs an async translation upload and blocks until the
// backend has processed it.
func (c *Client) UploadTranslation(ctx context.Context, slug, code, content string) (UploadResult, error) {
	op := fmt.Sprintf("upload %s [%s]", slug, code)
	body := asyncRequest{Data: asyncRequestData{
		Type: "resource_translations_async_uploads",
		Attributes: uploadAttributes{
			Content:         content,
			ContentEncoding: "text",
			FileType:        "default",
		},
		Relationships: c.relationships(slug, code),
	}}
	jobID, err := c.submit(ctx, op, "/resource_translations_async_uploads", body)
	if err != nil {
		return UploadResult{}, err
	}

	var result UploadResult
	err = c.poll(ctx, op, func() (bool, error) {
		resp, err := c.api.R().SetContext(ctx).Get("/resource_translations_async_uploads/" + url.PathEscape(jobID))
		if err != nil {
			return false, httpclient.RequestError(op, err)
		}
		if resp.IsError() {
			return false, statusError(op, resp)
		}
		return c.jobDone(op, resp.Body(), &result)
	})
	return result, err
}

func (c *Client) relationships(slug, code string) translationRelationships {
	return translationRelationships{
		Language: relationship{Data: identifier{Type: "languages", ID: languageID(code)}},
		Resource: relationship{Data: identifier{Type: "resources", ID: c.ResourceID(slug)}},
	}
}

func (c *Client) submit(ctx context.Context, op, path string, body asyncRequest) (string, error) {
	resp, err := c.api.R().SetContext(ctx).SetBody(body).Post(path)
	if err != nil {
		return "", httpclient.RequestError(op, err)
	}
	if resp.IsError() {
		return "", statusError(op, resp)
	}
	var job asyncJob
	if err := json.Unmarshal(resp.Body(), &job); err != nil || job.Data.ID == "" {
		return "", apperrors.New(apperrors.KindValidation, op+": async job response had no id", err)
	}
	logger.Debug("Submitted async job", "op", op, "job", job.Data.ID)
	return job.Data.ID, nil
}

// jobDone inspects an async job status document.
func (c *Client) jobDone(op string, body []byte, result *UploadResult) (bool, error) {
	var job asyncJob
	if err := json.Unmarshal(body, &job); err != nil {
		return false, apperrors.New(apperrors.KindValidation, op+": job status format was invalid", err)
	}
	switch job.Data.Attributes.Status {
	case statusSucceeded:
		if result != nil {
			*result = job.Data.Attributes.Details
		}
		return true, nil
	case statusFailed:
		detail := "no details"
		if errs := job.Data.Attributes.Errors; len(errs) > 0 {
			detail = fmt.Sprintf("%s: %s", errs[0].Code, errs[0].Detail)
		}
		return false, apperrors.New(apperrors.KindTransport, fmt.Sprintf("%s: job failed (%s)", op, detail), nil)
	case statusPending, statusProcessing, "":
		return false, nil
	default:
		logger.Debug("Unknown async job status", "op", op, "status", job.Data.Attributes.Status)
		return false, nil
	}
}

// poll calls check after every fixed interval until it reports completion,
// fails, or maxPolls attempts have been used.
func (c *Client) poll(ctx context.Context, op string, check func() (bool, error)) error {
	timer := time.NewTimer(c.pollInterval)
	defer timer.Stop()
	for attempt := 1; attempt <= c.maxPolls; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
		done, err := check()
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		timer.Reset(c.pollInterval)
	}
	return apperrors.New(
		apperrors.KindTransport,
		fmt.Sprintf("%s: job still pending after %d polls", op, c.maxPolls),
		nil,
	)
}

func (c *Client) fetch(ctx context.Context, op, location string) (string, error) {
	target, err := url.Parse(location)
	if err != nil {
		return "", apperrors.New(apperrors.KindValidation, op+": invalid file location", err)
	}
	target = c.baseURL.ResolveReference(target)

	resp, err := c.files.R().SetContext(ctx).Get(target.String())
	if err != nil {
		return "", httpclient.RequestError(op, err)
	}
	if resp.IsError() {
		return "", httpclient.StatusError(op, resp)
	}
	return string(resp.Body()), nil
}

func statusError(op string, resp *resty.Response) error {
	var envelope errorEnvelope
	if err := json.Unmarshal(resp.Body(), &envelope); err == nil && len(envelope.Errors) > 0 {
		e := envelope.Errors[0]
		cause := fmt.Errorf("%s: %s code=%s detail=%s", op, resp.Status(), e.Code, e.Detail)
		kind := apperrors.KindTransport
		if resp.StatusCode() == http.StatusUnauthorized || resp.StatusCode() == http.StatusForbidden {
			kind = apperrors.KindAuth
		}
		return apperrors.New(kind, fmt.Sprintf("%s: backend returned %d (%s)", op, resp.StatusCode(), e.Code), cause)
	}
	return httpclient.StatusError(op, resp)
}
