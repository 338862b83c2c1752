package offline

import (
	"io"
	"log/slog"
	"net/http"
	"net/url"
)

// Hop-by-hop headers are not forwarded.
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Proxy-Connection",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// Handler serves browser requests through the worker. Origin-form requests
// are sent to upstream; absolute-form requests (the browser using this as a
// forward proxy) keep their own URL and are classified as usual.
func (w *Worker) Handler(upstream *url.URL) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		out := r.Clone(r.Context())
		out.RequestURI = ""
		if !r.URL.IsAbs() {
			out.URL.Scheme = upstream.Scheme
			out.URL.Host = upstream.Host
			out.Host = upstream.Host
		}
		if r.ContentLength == 0 {
			out.Body = nil
		}
		removeHopHeaders(out.Header)

		resp, err := w.RoundTrip(out)
		if err != nil {
			slog.Debug("proxy request aborted", "url", out.URL.String(), "error", err)
			http.Error(rw, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
			return
		}
		defer resp.Body.Close()

		removeHopHeaders(resp.Header)
		for k, vv := range resp.Header {
			for _, v := range vv {
				rw.Header().Add(k, v)
			}
		}
		rw.WriteHeader(resp.StatusCode)
		if _, err := io.Copy(rw, resp.Body); err != nil {
			slog.Debug("proxy response copy failed", "url", out.URL.String(), "error", err)
		}
	})
}

func removeHopHeaders(h http.Header) {
	for _, k := range hopHeaders {
		h.Del(k)
	}
}
