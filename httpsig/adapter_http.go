package httpsig

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

func init() {
	RegisterAdapter(NewRequestAdapter)
	RegisterAdapter(NewResponseAdapter)
}

// requestAdapter exposes a net/http request.
type requestAdapter struct {
	r *http.Request
}

// NewRequestAdapter returns the adapter used for *http.Request values.
func NewRequestAdapter(r *http.Request) (Adapter, error) {
	if r == nil || r.URL == nil {
		return nil, fmt.Errorf("%w: %w", ErrConstruction, ErrNoMessage)
	}

	return &requestAdapter{r: r}, nil
}

func (a *requestAdapter) Kind() MessageKind { return KindRequest }

// Header looks up a request header. The "host" header is special-cased
// because net/http stores it in Request.Host rather than in the header map.
func (a *requestAdapter) Header(name string) ([]string, bool) {
	if values, ok := fieldLines(a.r.Header, name); ok {
		return values, true
	}

	if strings.EqualFold(name, "host") && a.r.Host != "" {
		return []string{a.r.Host}, true
	}

	return nil, false
}

func (a *requestAdapter) Trailer(name string) ([]string, bool) {
	return fieldLines(a.r.Trailer, name)
}

// Derived returns the derived component values of RFC 9421 Section 2.2.
func (a *requestAdapter) Derived(id ComponentID) (string, bool) {
	r := a.r

	switch id.Name() {
	case ComponentMethod:
		return strings.ToUpper(r.Method), true

	case ComponentAuthority:
		return authority(r), true

	case ComponentPath:
		return escapedPath(r), true

	case ComponentQuery:
		return "?" + r.URL.RawQuery, true

	case ComponentQueryParam:
		return queryParam(r, id)

	case ComponentTargetURI:
		return targetURI(r), true

	case ComponentScheme:
		return scheme(r), true

	case ComponentRequestTarget:
		return requestTarget(r), true

	default:
		return "", false
	}
}

func (a *requestAdapter) Attach(fields map[string]string) {
	if a.r.Header == nil {
		a.r.Header = make(http.Header)
	}

	for name, value := range fields {
		a.r.Header.Set(name, value)
	}
}

// responseAdapter exposes a net/http response.
type responseAdapter struct {
	resp *http.Response
}

// NewResponseAdapter returns the adapter used for *http.Response values.
func NewResponseAdapter(resp *http.Response) (Adapter, error) {
	if resp == nil {
		return nil, fmt.Errorf("%w: %w", ErrConstruction, ErrNoMessage)
	}

	return &responseAdapter{resp: resp}, nil
}

func (a *responseAdapter) Kind() MessageKind { return KindResponse }

func (a *responseAdapter) Header(name string) ([]string, bool) {
	return fieldLines(a.resp.Header, name)
}

func (a *responseAdapter) Trailer(name string) ([]string, bool) {
	return fieldLines(a.resp.Trailer, name)
}

func (a *responseAdapter) Derived(id ComponentID) (string, bool) {
	if id.Name() != ComponentStatus {
		return "", false
	}

	return fmt.Sprintf("%03d", a.resp.StatusCode), true
}

func (a *responseAdapter) Attach(fields map[string]string) {
	if a.resp.Header == nil {
		a.resp.Header = make(http.Header)
	}

	for name, value := range fields {
		a.resp.Header.Set(name, value)
	}
}

// attachedRequest returns the request that produced the response.
func (a *responseAdapter) attachedRequest() any {
	if a.resp.Request == nil {
		return nil
	}

	return a.resp.Request
}

func fieldLines(h http.Header, name string) ([]string, bool) {
	if h == nil {
		return nil, false
	}

	values, ok := h[http.CanonicalHeaderKey(name)]
	if !ok || len(values) == 0 {
		return nil, false
	}

	return values, true
}

// authority returns the authority component (host[:port]) from the request.
func authority(r *http.Request) string {
	if r.Host != "" {
		return strings.ToLower(r.Host)
	}

	return strings.ToLower(r.URL.Host)
}

// scheme returns the request scheme (http or https).
func scheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}

	if r.URL.Scheme != "" {
		return strings.ToLower(r.URL.Scheme)
	}

	return "http"
}

// escapedPath returns the request path as sent on the wire, "/" when empty.
func escapedPath(r *http.Request) string {
	path := r.URL.EscapedPath()
	if path == "" {
		path = "/"
	}

	return path
}

// targetURI reconstructs the full target URI for the request.
func targetURI(r *http.Request) string {
	uri := scheme(r) + "://" + authority(r) + escapedPath(r)
	if r.URL.RawQuery != "" {
		uri += "?" + r.URL.RawQuery
	}

	return uri
}

// requestTarget returns the request target (path + optional query).
func requestTarget(r *http.Request) string {
	if r.URL.RawQuery != "" {
		return escapedPath(r) + "?" + r.URL.RawQuery
	}

	return escapedPath(r)
}

// queryParam returns the value of the query parameter named by the name
// parameter, re-encoded per RFC 9421 Section 2.2.8. A parameter that occurs
// more than once is absent.
func queryParam(r *http.Request, id ComponentID) (string, bool) {
	raw, ok := id.Param(ComponentParamName)
	if !ok {
		return "", false
	}

	encoded, ok := raw.(string)
	if !ok {
		return "", false
	}

	name, err := url.QueryUnescape(encoded)
	if err != nil {
		return "", false
	}

	query, err := url.ParseQuery(r.URL.RawQuery)
	if err != nil {
		return "", false
	}

	values, ok := query[name]
	if !ok || len(values) != 1 {
		return "", false
	}

	return encodeQueryValue(values[0]), true
}

// encodeQueryValue percent-encodes every byte outside the
// application/x-www-form-urlencoded safe set (ALPHA, DIGIT, "*-._").
// Spaces become %20.
func encodeQueryValue(s string) string {
	const upperHex = "0123456789ABCDEF"

	var b strings.Builder
	b.Grow(len(s))

	for i := 0; i < len(s); i++ {
		c := s[i]

		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9',
			c == '*', c == '-', c == '.', c == '_':
			b.WriteByte(c)
		default:
			b.WriteByte('%')
			b.WriteByte(upperHex[c>>4])
			b.WriteByte(upperHex[c&0x0f])
		}
	}

	return b.String()
}
