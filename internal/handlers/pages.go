package handlers

import "net/http"

// handleLoginPage serves the public entry page. The real UI is a static
// bundle; this shell just offers the way in.
func handleLoginPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(loginHTML))
	}
}

// handleAppShell serves the single-page app shell for every /authenticated/
// path. Client-side routing resolves the rest of the URL.
func handleAppShell() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(appHTML))
	}
}

const loginHTML = `<!DOCTYPE html>
<html>
<head><title>Ticket Editor</title></head>
<body>
<main>
	<h1>Ticket Editor</h1>
	<a href="/internal/login?source=%2Fauthenticated%2Fprojects">Log in with Atlassian</a>
</main>
</body>
</html>
`

const appHTML = `<!DOCTYPE html>
<html>
<head><title>Ticket Editor</title></head>
<body>
<div id="root"></div>
<script src="/static/app.js" defer></script>
</body>
</html>
`
