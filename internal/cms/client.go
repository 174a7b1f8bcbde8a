// Package cms scrapes the university course management system.
package cms

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"cms-downloader/internal/components/assert"
	"cms-downloader/internal/components/telemetry"
	"cms-downloader/lib/restyutil"

	"github.com/Azure/go-ntlmssp"
	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

const tracerName = "cms-downloader/internal/cms"

var tracer = otel.Tracer(tracerName)

const (
	report_client_authenticate = "client.authenticate"
	report_client_courses      = "client.courses"
	report_client_course_page  = "client.course-page"
	report_client_download     = "client.download"
	report_client_cache        = "client.cache"
)

const (
	coursesPath = "/apps/student/ViewAllCourseStn"
	userAgent   = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"
)

type Options struct {
	Host     string
	Username string
	Password string

	InsecureSkipVerify bool
	// Timeout bounds page requests and the wait for response headers of a
	// download, it does not bound reading a download's body.
	Timeout           time.Duration
	Retries           int
	RequestsPerSecond int

	// Cache is optional, course pages are fetched every time without it.
	Cache         *PageCache
	CacheLifetime time.Duration
	// Dump is optional, every request and response is written to it.
	Dump restyutil.Output
}

type Client struct {
	Host *url.URL
	Http *resty.Client

	opts Options
	tel  telemetry.API
}

func NewClient(opts Options, tel telemetry.API) (*Client, error) {
	assert.NotNil(tel)
	assert.NotEmptyStr(opts.Host)

	tel = telemetry.NewScopedAPI("cms", tel)

	host, err := url.Parse(opts.Host)
	if err != nil {
		return nil, err
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 4
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = opts.Timeout
	// the bypass replaces the tls config of the transport it wraps
	bypass := cloudflarebp.AddCloudFlareByPass(transport)
	if transport.TLSClientConfig == nil {
		transport.TLSClientConfig = &tls.Config{}
	}
	transport.TLSClientConfig.InsecureSkipVerify = opts.InsecureSkipVerify

	httpClient := resty.New()
	httpClient.SetBaseURL(host.String())
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	httpClient.SetCookieJar(jar)
	// the negotiator answers NTLM (or basic) challenges with the basic auth
	// credentials set on the request
	httpClient.SetTransport(ntlmssp.Negotiator{
		RoundTripper: bypass,
	})
	httpClient.SetBasicAuth(opts.Username, opts.Password)
	httpClient.SetHeader("user-agent", userAgent)
	httpClient.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(host.Hostname()))
	httpClient.SetDisableWarn(true)

	httpClient.SetRetryCount(opts.Retries)
	httpClient.SetRetryWaitTime(100 * time.Millisecond)
	httpClient.SetRetryMaxWaitTime(5 * time.Second)
	httpClient.AddRetryCondition(func(res *resty.Response, err error) bool {
		return res != nil && res.StatusCode() >= 500
	})

	// max burst == rate just means that no requests will be dropped
	rateLimiter := rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), opts.RequestsPerSecond)
	httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return rateLimiter.Wait(req.Context())
	})

	telemetry.InstrumentResty(httpClient, tel, tracerName)
	restyutil.DumpMessages(httpClient, opts.Dump)

	return &Client{
		Host: host,
		Http: httpClient,
		opts: opts,
		tel:  tel,
	}, nil
}

// fetch gets a page and fails on anything but a 200.
func (c *Client) fetch(ctx context.Context, endpoint string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	res, err := c.Http.R().
		SetContext(ctx).
		Get(endpoint)
	if err != nil {
		return nil, err
	}
	if res.StatusCode() != http.StatusOK {
		return nil, StatusError{Code: res.StatusCode(), Url: res.Request.URL}
	}
	return res.Body(), nil
}

// Authenticate checks that the CMS accepts the client's credentials.
func (c *Client) Authenticate(ctx context.Context) error {
	c.tel.ReportDebug(report_client_authenticate, c.opts.Username)

	_, err := c.fetch(ctx, "/")
	var statusErr StatusError
	if errors.As(err, &statusErr) {
		return fmt.Errorf("%w (%s)", ErrAuthentication, statusErr.Error())
	}
	if err != nil {
		c.tel.ReportBroken(
			report_client_authenticate,
			fmt.Errorf("fetch: %w", err),
		)
		return err
	}
	return nil
}

// Courses returns every course listed on the "view all courses" page.
func (c *Client) Courses(ctx context.Context) ([]Course, error) {
	c.tel.ReportDebug(report_client_courses, coursesPath)

	contents, err := c.fetch(ctx, coursesPath)
	if err != nil {
		c.tel.ReportBroken(
			report_client_courses,
			fmt.Errorf("fetch: %w", err),
		)
		return nil, err
	}
	courses, err := ParseCourses(c.Host, contents, c.tel)
	if err != nil {
		c.tel.ReportBroken(
			report_client_courses,
			fmt.Errorf("parse: %w", err),
		)
		return nil, err
	}
	return courses, nil
}

// CoursePage fetches the course page of `course` and returns the course with
// its weeks filled in.
func (c *Client) CoursePage(ctx context.Context, course Course) (Course, error) {
	assert.NotNil(course.Url)

	endpoint := course.Url.String()
	c.tel.ReportDebug(report_client_course_page, endpoint)

	contents, err := c.cachedFetch(ctx, endpoint)
	if err != nil {
		c.tel.ReportBroken(
			report_client_course_page,
			fmt.Errorf("fetch: %w", err),
			endpoint,
		)
		return course, err
	}

	course, err = ParseCoursePage(c.Host, course, contents, c.tel)
	if err != nil {
		c.tel.ReportBroken(
			report_client_course_page,
			fmt.Errorf("parse: %w", err),
			endpoint,
		)
		return course, err
	}
	return course, nil
}

func (c *Client) cachedFetch(ctx context.Context, endpoint string) ([]byte, error) {
	if c.opts.Cache == nil {
		return c.fetch(ctx, endpoint)
	}

	contents, err := c.opts.Cache.Get(ctx, c.opts.Username, endpoint)
	if err == nil {
		c.tel.ReportDebug("served from cache", endpoint)
		return contents, nil
	}
	if !errors.Is(err, errPageNotFound) {
		c.tel.ReportWarning(report_client_cache, fmt.Errorf("get: %w", err), endpoint)
	}

	contents, err = c.fetch(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	err = c.opts.Cache.Set(ctx, c.opts.Username, endpoint, contents, c.opts.CacheLifetime)
	if err != nil {
		c.tel.ReportWarning(report_client_cache, fmt.Errorf("set: %w", err), endpoint)
	}
	return contents, nil
}

// Download is a streaming response body. The caller must close Body.
type Download struct {
	Body io.ReadCloser
	// ContentLength is -1 when the CMS does not send it.
	ContentLength int64
	ContentType   string
}

func (c *Client) Download(ctx context.Context, link *url.URL) (Download, error) {
	assert.NotNil(link)

	endpoint := link.String()
	res, err := c.Http.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(endpoint)
	if res != nil && res.Request != nil {
		// unparsed responses skip the after response hooks that end the span
		trace.SpanFromContext(res.Request.Context()).End()
	}
	if err != nil {
		c.tel.ReportBroken(
			report_client_download,
			fmt.Errorf("fetch: %w", err),
			endpoint,
		)
		return Download{}, err
	}

	body := res.RawBody()
	if res.StatusCode() != http.StatusOK {
		body.Close()
		err := StatusError{Code: res.StatusCode(), Url: endpoint}
		c.tel.ReportWarning(report_client_download, err)
		return Download{}, err
	}

	return Download{
		Body:          body,
		ContentLength: res.RawResponse.ContentLength,
		ContentType:   res.Header().Get("content-type"),
	}, nil
}
