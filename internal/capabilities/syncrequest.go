package capabilities

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/trinitybot/trinity/pkg/models"
)

// syncRequestTimeout bounds each HTTP attempt of a run_request call (a
// call makes at most two attempts), mirroring the gateway's
// fixed-timeout HTTP client in the teacher.
const syncRequestTimeout = 30 * time.Second

// SyncRequestCapability implements sync-request.run_request: a
// blocking HTTP call the guest makes synchronously, with the host
// absorbing one retry of a transient transport failure before
// reporting an error back across the ABI.
type SyncRequestCapability struct {
	module string
	client *http.Client
}

// NewSyncRequestCapability returns a sync-request capability scoped to
// moduleName, with its own http.Client so one guest's in-flight
// requests never share connection state with another's.
func NewSyncRequestCapability(moduleName string) *SyncRequestCapability {
	return &SyncRequestCapability{
		module: moduleName,
		client: &http.Client{Timeout: syncRequestTimeout},
	}
}

// RunRequest builds and executes req, retrying once on a transient
// transport failure (anything that isn't a malformed request) before
// giving up.
func (c *SyncRequestCapability) RunRequest(req models.SyncRequest) (*models.SyncResponse, *models.RunError) {
	// Validate once up front so a malformed request is reported as a
	// builder error rather than silently retried.
	if _, err := c.build(req); err != nil {
		return nil, &models.RunError{Kind: models.RunErrorBuilder, Message: err.Error()}
	}

	var resp *http.Response
	op := func() error {
		httpReq, err := c.build(req)
		if err != nil {
			return backoff.Permanent(err)
		}
		r, err := c.client.Do(httpReq)
		if err != nil {
			return err
		}
		resp = r
		return nil
	}

	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 1)
	if err := backoff.Retry(op, policy); err != nil {
		return nil, &models.RunError{Kind: models.RunErrorExecute, Message: err.Error()}
	}
	defer resp.Body.Close()

	status := models.StatusError
	if resp.StatusCode/100 == 2 {
		status = models.StatusSuccess
	}

	var body *string
	if raw, err := io.ReadAll(resp.Body); err == nil {
		s := string(raw)
		body = &s
	}

	return &models.SyncResponse{Status: status, Body: body}, nil
}

func (c *SyncRequestCapability) build(req models.SyncRequest) (*http.Request, error) {
	var bodyReader io.Reader
	if req.Body != nil {
		bodyReader = bytes.NewReader([]byte(*req.Body))
	}

	method := string(req.Verb)
	if method == "" {
		return nil, fmt.Errorf("sync-request: missing verb")
	}

	httpReq, err := http.NewRequest(method, req.URL, bodyReader)
	if err != nil {
		return nil, err
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	return httpReq, nil
}
