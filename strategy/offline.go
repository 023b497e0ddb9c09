package strategy

import (
	"encoding/json"
	"net/http"
)

// OfflineStatus is the fixed status code of synthesized offline responses.
const OfflineStatus = http.StatusServiceUnavailable

// OfflineErrorCode is the fixed machine-readable code inside synthesized
// offline JSON bodies.
const OfflineErrorCode = "OFFLINE"

// offlineJSON synthesizes the structured offline error for API requests that
// cannot be served from network or cache.
func offlineJSON() *Result {
	body, _ := json.Marshal(map[string]string{
		"error":   OfflineErrorCode,
		"message": "You are offline and this data is not cached yet.",
	})
	return &Result{
		Status: OfflineStatus,
		Header: http.Header{"Content-Type": []string{"application/json; charset=utf-8"}},
		Body:   body,
		Source: SourceOffline,
	}
}

// offlinePage synthesizes the minimal offline HTML document served when a
// navigation fails and no app shell is cached.
func offlinePage() *Result {
	const page = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Offline - Simhasth Heritage</title>
</head>
<body>
<h1>You are offline</h1>
<p>The Simhasth heritage experience needs a connection for this page. Previously visited sites remain available.</p>
</body>
</html>
`
	return &Result{
		Status: OfflineStatus,
		Header: http.Header{"Content-Type": []string{"text/html; charset=utf-8"}},
		Body:   []byte(page),
		Source: SourceOffline,
	}
}
