package server

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/conneroisu/bbcoder/internal/build"
)

const pageStyle = `body{font-family:sans-serif;margin:2rem;max-width:60rem}
pre{background:#f4f4f4;padding:1rem;white-space:pre-wrap;word-wrap:break-word}
.error{color:#b00020}
.ok{color:#2e7d32}`

// reloadScript reconnects to /ws and reloads when the page's target is rebuilt.
const reloadScript = `<script>
(function () {
  var target = document.body.dataset.target;
  function connect() {
    var proto = location.protocol === "https:" ? "wss://" : "ws://";
    var ws = new WebSocket(proto + location.host + "/ws");
    ws.onmessage = function (event) {
      var msg = JSON.parse(event.data);
      if (msg.target === target && (msg.type === "rebuild" || msg.type === "error")) {
        location.reload();
      }
    };
    ws.onclose = function () { setTimeout(connect, 1000); };
  }
  connect();
})();
</script>`

func pageHeader(sb *strings.Builder, title string) {
	sb.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>")
	sb.WriteString(html.EscapeString(title))
	sb.WriteString("</title>\n<style>")
	sb.WriteString(pageStyle)
	sb.WriteString("</style>\n</head>\n")
}

func indexPage(o *Orchestrator) string {
	var sb strings.Builder
	pageHeader(&sb, "bbcoder targets")
	sb.WriteString("<body>\n<h1>Targets</h1>\n<ul>\n")

	for _, name := range o.Targets() {
		escaped := html.EscapeString(name)
		link := html.EscapeString(url.PathEscape(name))
		status := `<span>not built</span>`
		if result, ok := o.Tracker().Result(name); ok {
			if result.Error != nil {
				status = `<span class="error">failed</span>`
			} else {
				status = fmt.Sprintf(`<span class="ok">%d bytes</span>`, len(result.Output))
			}
		}
		fmt.Fprintf(&sb, `<li><a href="/preview/%s">%s</a> (<a href="/targets/%s">raw</a>) %s</li>`+"\n",
			link, escaped, link, status)
	}

	sb.WriteString("</ul>\n</body>\n</html>\n")
	return sb.String()
}

// previewPage shows the BBCode of result verbatim, or its build error.
func previewPage(name string, result build.Result, live bool) string {
	var sb strings.Builder
	pageHeader(&sb, name+" - bbcoder")
	fmt.Fprintf(&sb, "<body data-target=\"%s\">\n", html.EscapeString(name))
	fmt.Fprintf(&sb, "<p><a href=\"/\">Targets</a></p>\n<h1>%s</h1>\n", html.EscapeString(name))

	switch {
	case result.Error != nil:
		fmt.Fprintf(&sb, "<pre class=\"error\">%s</pre>\n", html.EscapeString(result.Error.Error()))
	case result.Target == "":
		sb.WriteString("<p>Not built yet.</p>\n")
	default:
		fmt.Fprintf(&sb, "<pre>%s</pre>\n", html.EscapeString(string(result.Output)))
	}

	if live {
		sb.WriteString(reloadScript)
		sb.WriteString("\n")
	}
	sb.WriteString("</body>\n</html>\n")
	return sb.String()
}
