package http

import (
	"bytes"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/bascanada/logai-mcp/pkg/log"
	"github.com/bascanada/logai-mcp/pkg/ty"
)

type Auth interface {
	Login(req *http.Request) error
}

// HeaderAuth sets fixed headers (like Authorization) on each request.
type HeaderAuth struct {
	Headers ty.MS
}

func (h HeaderAuth) Login(req *http.Request) error {
	for k, v := range h.Headers {
		req.Header.Set(k, v)
	}
	return nil
}

// BasicAuth sends a username and password with each request.
type BasicAuth struct {
	Username string
	Password string
}

func (b BasicAuth) Login(req *http.Request) error {
	req.SetBasicAuth(b.Username, b.Password)
	return nil
}

type HttpClient struct {
	client http.Client
	url    string
}

func (c HttpClient) post(path string, headers ty.MS, buf *bytes.Buffer, responseData interface{}, auth Auth) error {
	path = c.url + path

	log.Debug("[POST]%s %s"+ty.LB, path, buf.String())

	req, err := http.NewRequest("POST", path, buf)
	if err != nil {
		return err
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	log.Trace("[POST-HEADERS] %s"+ty.LB, maskHeaderMap(req.Header))

	if auth != nil {
		if err = auth.Login(req); err != nil {
			return err
		}
	}

	res, err := c.client.Do(req)
	if err != nil {
		return err
	}

	if res.Body != nil {
		defer res.Body.Close()
	}

	resBody, err := io.ReadAll(res.Body)
	if err != nil {
		return err
	}

	if res.StatusCode >= 400 {
		log.Debug("error %d  %s"+ty.LB, res.StatusCode, string(resBody))
		return errors.New(string(resBody))
	}

	return json.Unmarshal(resBody, &responseData)
}

func (c HttpClient) PostJson(path string, headers ty.MS, body interface{}, responseData interface{}, auth Auth) error {

	headers["Content-Type"] = "application/json"

	var buf bytes.Buffer
	encErr := json.NewEncoder(&buf).Encode(body)
	if encErr != nil {
		return encErr
	}

	return c.post(path, headers, &buf, responseData, auth)

}

func (c HttpClient) Get(path string, queryParams ty.MS, responseData interface{}, auth Auth) error {

	path = c.url + path

	q := url.Values{}

	for k, v := range queryParams {
		q.Add(k, v)
	}

	queryParamString := q.Encode()

	if queryParamString != "" {
		path += "?" + queryParamString
	}

	log.Debug("[GET]%s"+ty.LB, path)

	req, err := http.NewRequest("GET", path, nil)
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")

	if auth != nil {
		if err = auth.Login(req); err != nil {
			return err
		}
	}

	res, getErr := c.client.Do(req)
	if getErr != nil {
		return getErr
	}

	if res.Body != nil {
		defer res.Body.Close()
	}

	resBody, readErr := io.ReadAll(res.Body)
	if readErr != nil {
		return readErr
	}

	if res.StatusCode >= 400 {
		return errors.New(string(resBody))
	}

	return json.Unmarshal(resBody, &responseData)
}

// GetClient normalizes the base url (default scheme https, no trailing
// slash) and returns a client ready for Get/PostJson calls.
func GetClient(url string, insecure bool) HttpClient {
	if url != "" {
		if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
			url = "https://" + url
		}
		for strings.HasSuffix(url, "/") {
			url = strings.TrimSuffix(url, "/")
		}
	}

	return HttpClient{
		client: getHTTPClient(insecure),
		url:    url,
	}
}

func getHTTPClient(insecure bool) http.Client {
	if !insecure {
		return http.Client{}
	}
	switch v := http.DefaultTransport.(type) {
	case (*http.Transport):
		customTransport := v.Clone()
		customTransport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		return http.Client{Transport: customTransport}
	default:
		return http.Client{}
	}
}

// maskHeaderMap renders headers with sensitive values redacted, keeping the
// first 4 chars so a misconfigured token is still recognizable in logs.
func maskHeaderMap(h http.Header) string {
	redacted := []string{}
	for k, vals := range h {
		v := ""
		if len(vals) > 0 {
			val := vals[0]
			switch strings.ToLower(k) {
			case "authorization", "cookie", "x-auth-token", "x-scope-orgid":
				if len(val) > 4 {
					v = val[:4] + "...REDACTED"
				} else {
					v = "REDACTED"
				}
			default:
				v = val
			}
		}
		redacted = append(redacted, fmt.Sprintf("%s: %s", k, v))
	}
	return strings.Join(redacted, "; ")
}
