package templates

import (
	"context"
	"io"
	"strings"

	"github.com/a-h/templ"
)

const chatScript = `<script>
const form = document.getElementById("chat-form");
const log = document.getElementById("chat-log");
const userKey = "dinebot-user-id";
let userID = localStorage.getItem(userKey);
if (!userID) {
  userID = crypto.randomUUID();
  localStorage.setItem(userKey, userID);
}
function append(role, text) {
  const item = document.createElement("li");
  item.className = role;
  item.textContent = text;
  log.appendChild(item);
}
form.addEventListener("submit", async (event) => {
  event.preventDefault();
  const input = form.elements["user_input"];
  const message = input.value.trim();
  if (!message) return;
  append("user", message);
  input.value = "";
  const res = await fetch(form.dataset.endpoint, {
    method: "POST",
    headers: {"Content-Type": "application/json"},
    body: JSON.stringify({user_id: userID, user_input: message}),
  });
  const body = await res.json();
  append("bot", res.ok ? body.response : (body.detail || "Something went wrong."));
});
</script>`

// HomePage renders the single page chat client.
func HomePage(data HomePageData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		var b strings.Builder
		b.WriteString(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		b.WriteString(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		b.WriteString(`<title>` + templ.EscapeString(data.Title) + `</title></head><body>`)
		b.WriteString(`<main><h1>` + templ.EscapeString(data.Title) + `</h1>`)
		b.WriteString(`<p class="tagline">` + templ.EscapeString(data.Tagline) + `</p>`)

		if len(data.Suggestions) > 0 {
			b.WriteString(`<ul class="suggestions">`)
			for _, suggestion := range data.Suggestions {
				b.WriteString(`<li>` + templ.EscapeString(suggestion) + `</li>`)
			}
			b.WriteString(`</ul>`)
		}

		b.WriteString(`<ol id="chat-log"></ol>`)
		b.WriteString(`<form id="chat-form" data-endpoint="` + templ.EscapeString(data.ChatEndpoint) + `">`)
		b.WriteString(`<input name="user_input" autocomplete="off" placeholder="Ask about food..."><button type="submit">Send</button></form>`)
		b.WriteString(`</main>`)
		b.WriteString(chatScript)
		b.WriteString(`</body></html>`)

		_, err := io.WriteString(w, b.String())
		return err
	})
}
