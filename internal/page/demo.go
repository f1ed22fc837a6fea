package page

import "encoding/json"

// DemoConfig is the last-resort page: served when a shop has nothing
// published and no snapshot exists, so a freshly installed store still
// renders something instead of a 404.
func DemoConfig() json.RawMessage {
	return json.RawMessage(`{
  "version": 1,
  "title": "Your link-in-bio page",
  "bio": "Publish a page from the dashboard to replace this demo.",
  "theme": {"preset": "light"},
  "blocks": [
    {"id": "demo-welcome", "type": "text", "text": "Welcome! This is a placeholder page."},
    {"id": "demo-link", "type": "link", "title": "Open your dashboard", "url": "https://admin.shopify.com"}
  ]
}`)
}
