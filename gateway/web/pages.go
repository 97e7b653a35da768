package web

import (
	"html/template"
	"net/http"
)

type pageData struct {
	Topic     string
	RefreshMS int
}

// handleIndex renders the viewer page for the active mode.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	tmpl := singleTemplate
	if s.gallery {
		tmpl = galleryTemplate
	}

	setNoCache(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.Execute(w, pageData{
		Topic:     s.cfg.MQTT.Topic,
		RefreshMS: s.cfg.Viewer.RefreshMS,
	}); err != nil {
		s.logger.Error("template render failed", "error", err)
	}
}

var singleTemplate = template.Must(template.New("single").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Snapshot Viewer</title>
<style>
  body { margin: 0; background: #111; color: #ddd; font-family: sans-serif; text-align: center; }
  h1 { font-size: 1.1em; font-weight: normal; padding: 8px; margin: 0; color: #888; }
  img { max-width: 100vw; max-height: 88vh; }
  .empty { padding: 4em; color: #666; }
</style>
</head>
<body>
<h1>{{.Topic}}</h1>
<div id="view"><div class="empty">waiting for first snapshot&hellip;</div></div>
<script>
  const refreshMs = {{.RefreshMS}};
  function reload() {
    const img = new Image();
    img.onload = () => { document.getElementById("view").replaceChildren(img); };
    img.onerror = () => {};
    img.src = "/image.jpg?t=" + Date.now();
  }
  const es = new EventSource("/events");
  es.onmessage = reload;
  es.onerror = () => {};
  setInterval(reload, refreshMs);
  reload();
</script>
</body>
</html>
`))

var galleryTemplate = template.Must(template.New("gallery").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Snapshot Gallery</title>
<style>
  body { margin: 0; background: #111; color: #ddd; font-family: sans-serif; }
  h1 { font-size: 1.1em; font-weight: normal; padding: 8px 12px; margin: 0; color: #888; }
  .grid { display: grid; grid-template-columns: repeat(auto-fill, minmax(320px, 1fr)); gap: 8px; padding: 8px; }
  .card { background: #1b1b1b; border-radius: 4px; overflow: hidden; }
  .card img { width: 100%; display: block; cursor: pointer; }
  .card .label { padding: 6px 8px; font-size: 0.8em; color: #aaa; }
  .empty { padding: 4em; color: #666; text-align: center; }
  #kiosk-btn { margin: 0 12px 8px; padding: 4px 10px; background: #2a2a2a; color: #aaa; border: 1px solid #444; border-radius: 4px; cursor: pointer; }
  body.kiosk h1, body.kiosk #kiosk-btn { display: none; }
  .fullscreen-img {
    position: fixed; top: 0; left: 0;
    width: 100vw !important; height: 100vh;
    object-fit: contain; background: #000; z-index: 9999;
  }
</style>
</head>
<body>
<h1>{{.Topic}}</h1>
<button id="kiosk-btn">Enter Kiosk Mode</button>
<div id="grid" class="grid"><div class="empty">waiting for first snapshot&hellip;</div></div>
<script>
  const refreshMs = {{.RefreshMS}};

  const kioskBtn = document.getElementById("kiosk-btn");
  let kioskActive = false;
  function setKioskMode(on) {
    kioskActive = on;
    document.body.classList.toggle("kiosk", on);
    kioskBtn.textContent = on ? "Exit Kiosk Mode" : "Enter Kiosk Mode";
    if (on) {
      if (document.documentElement.requestFullscreen) document.documentElement.requestFullscreen();
    } else if (document.fullscreenElement) {
      document.exitFullscreen();
    }
  }
  kioskBtn.onclick = () => setKioskMode(!kioskActive);
  document.addEventListener("fullscreenchange", () => {
    if (!document.fullscreenElement && kioskActive) setKioskMode(false);
  });
  document.addEventListener("keydown", e => {
    if (e.key === "Escape") {
      document.querySelectorAll(".fullscreen-img").forEach(el => el.classList.remove("fullscreen-img"));
    }
  });
  async function reload() {
    const resp = await fetch("/gallery");
    if (!resp.ok) return;
    const data = await resp.json();
    if (!data.images.length) return;
    const grid = document.getElementById("grid");
    grid.replaceChildren(...data.images.map(im => {
      const card = document.createElement("div");
      card.className = "card";
      const img = document.createElement("img");
      img.src = "/image/" + encodeURIComponent(im.camera) + "/" + encodeURIComponent(im.object) + ".jpg?t=" + Date.now();
      img.ondblclick = () => {
        const active = img.classList.contains("fullscreen-img");
        document.querySelectorAll(".fullscreen-img").forEach(el => el.classList.remove("fullscreen-img"));
        if (!active) img.classList.add("fullscreen-img");
      };
      const label = document.createElement("div");
      label.className = "label";
      label.textContent = im.camera + " / " + im.object + " @ " + new Date(im.timestamp * 1000).toLocaleTimeString();
      card.append(img, label);
      return card;
    }));
  }
  const es = new EventSource("/events");
  es.onmessage = () => { reload().catch(() => {}); };
  es.onerror = () => {};
  setInterval(() => { reload().catch(() => {}); }, refreshMs);
  reload().catch(() => {});
</script>
</body>
</html>
`))
