package main

import (
	// stdlib
	"html/template"
	"net/http"

	// internal
	"github.com/grigone/detweb/pkg/classes"
	"github.com/grigone/detweb/pkg/seq"
)

// single-page UI; everything dynamic comes from the JSON endpoints
var page_template = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
  body { font-family: sans-serif; margin: 0; display: flex; color: #222; }
  aside { width: 280px; padding: 16px; background: #f4f4f4; min-height: 100vh; }
  main { flex: 1; padding: 16px; }
  h1 { font-size: 1.3em; }
  fieldset { border: 1px solid #ccc; margin-bottom: 12px; }
  progress { width: 100%; }
  .stats { display: flex; flex-wrap: wrap; gap: 8px; }
  .stat { border: 1px solid #ccc; border-radius: 6px; padding: 8px 14px; min-width: 110px; }
  .stat b { font-size: 1.4em; display: block; }
  .error { color: #b00020; }
  .notice { color: #666; }
  img, video { max-width: 100%; }
  .device-ok { color: #0a7d32; }
</style>
</head>
<body>
<aside>
  <h1>{{.Glyph}} {{.Title}}</h1>
  <div id="device" class="notice">probing device...</div>
  <hr>
  <fieldset>
    <legend>Model</legend>
    <label><input type="radio" name="model_source" value="default" checked> Default model</label><br>
    <label><input type="radio" name="model_source" value="upload"> Upload custom</label><br>
    <input type="file" id="model_file" accept=".onnx" disabled>
    <div id="model_status" class="notice"></div>
  </fieldset>
  <fieldset>
    <legend>Confidence: <span id="conf_value">{{.Confidence}}</span></legend>
    <input type="range" id="confidence" min="0" max="1" step="0.05" value="{{.Confidence}}">
  </fieldset>
  <fieldset>
    <legend>Detection classes</legend>
    {{range .Classes}}
    <label><input type="checkbox" class="class-box" value="{{.ID}}" checked> {{.Glyph}} {{.Name}}</label><br>
    {{end}}
  </fieldset>
</aside>
<main>
  <fieldset>
    <legend>Image</legend>
    <input type="file" id="image_file" accept="{{.ImageAccept}}">
    <button id="run_image">Detect</button>
    <div id="image_error" class="error"></div>
    <img id="image_result" hidden>
    <div id="image_stats" class="stats"></div>
  </fieldset>
  <fieldset>
    <legend>Video</legend>
    <input type="file" id="video_file" accept="{{.VideoAccept}}">
    <button id="run_video">Start detection</button>
    <div id="video_error" class="error"></div>
    <progress id="video_progress" value="0" max="1" hidden></progress>
    <div id="video_status" class="notice"></div>
    <img id="live_preview" src="/preview" hidden>
    <video id="video_result" controls hidden></video>
    <a id="video_download" hidden>Download processed video</a>
    <div id="video_stats" class="stats"></div>
  </fieldset>
</main>
<script>
let model_path = "";

fetch("/api/device").then(r => r.json()).then(d => {
  const el = document.getElementById("device");
  el.textContent = d.accelerated ? "🚀 " + d.name : "💻 " + d.name;
  if (d.accelerated) el.className = "device-ok";
});

document.getElementById("confidence").oninput = e =>
  document.getElementById("conf_value").textContent = e.target.value;

document.querySelectorAll("input[name=model_source]").forEach(el => el.onchange = () => {
  document.getElementById("model_file").disabled =
    document.querySelector("input[name=model_source]:checked").value !== "upload";
});

document.getElementById("model_file").onchange = async e => {
  const fd = new FormData();
  fd.append("model", e.target.files[0]);
  const resp = await fetch("/api/model", { method: "POST", body: fd });
  const body = await resp.json();
  const status = document.getElementById("model_status");
  if (!resp.ok) { status.textContent = body.error; status.className = "error"; return; }
  model_path = body.path;
  status.textContent = "✅ Model loaded";
  status.className = "notice";
};

function settings(fd) {
  fd.append("confidence", document.getElementById("confidence").value);
  document.querySelectorAll(".class-box:checked").forEach(b => fd.append("classes", b.value));
  if (document.querySelector("input[name=model_source]:checked").value === "upload" && model_path)
    fd.append("model_path", model_path);
  return fd;
}

function renderStats(el, entries) {
  el.innerHTML = "";
  (entries || []).forEach(s => {
    const div = document.createElement("div");
    div.className = "stat";
    div.innerHTML = "<b>" + s.count + "</b>" + s.name +
      " <small>(" + (s.mean_confidence * 100).toFixed(0) + "%)</small>";
    el.appendChild(div);
  });
}

document.getElementById("run_image").onclick = async () => {
  const input = document.getElementById("image_file");
  const err = document.getElementById("image_error");
  err.textContent = "";
  if (!input.files.length) { err.textContent = "Pick an image first"; return; }
  const fd = settings(new FormData());
  fd.append("image", input.files[0]);
  const resp = await fetch("/api/detect/image", { method: "POST", body: fd });
  const body = await resp.json();
  if (!resp.ok) { err.textContent = body.error; return; }
  const img = document.getElementById("image_result");
  img.src = "data:image/jpeg;base64," + body.image;
  img.hidden = false;
  renderStats(document.getElementById("image_stats"), body.stats);
};

document.getElementById("run_video").onclick = async () => {
  const input = document.getElementById("video_file");
  const err = document.getElementById("video_error");
  err.textContent = "";
  if (!input.files.length) { err.textContent = "Pick a video first"; return; }
  const fd = settings(new FormData());
  fd.append("video", input.files[0]);
  const resp = await fetch("/api/detect/video", { method: "POST", body: fd });
  const body = await resp.json();
  if (!resp.ok) { err.textContent = body.error; return; }
  watch(body.job);
};

function watch(id) {
  const bar = document.getElementById("video_progress");
  const status = document.getElementById("video_status");
  const preview = document.getElementById("live_preview");
  bar.hidden = false; preview.hidden = false;
  const ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/ws/jobs/" + id);
  ws.onmessage = e => {
    const u = JSON.parse(e.data);
    if (u.fraction < 0) bar.removeAttribute("value");
    else bar.value = u.fraction;
    status.textContent = "Processing: " + u.done + (u.total > 0 ? "/" + u.total : "") + " frames";
    if (u.state === "failed") {
      document.getElementById("video_error").textContent = u.error;
      bar.hidden = true; preview.hidden = true;
      ws.close();
    }
    if (u.state === "done") {
      bar.value = 1;
      status.textContent = "Done, " + u.frames + " frames";
      preview.hidden = true;
      const video = document.getElementById("video_result");
      video.src = "/api/jobs/" + id + "/video";
      video.hidden = false;
      const dl = document.getElementById("video_download");
      dl.href = video.src;
      dl.download = "detected_video.mp4";
      dl.hidden = false;
      renderStats(document.getElementById("video_stats"), u.stats);
      ws.close();
    }
  };
}
</script>
</body>
</html>
`))

type pageData struct {
	Title       string
	Glyph       string
	Confidence  float32
	Classes     []pageClass
	ImageAccept string
	VideoAccept string
}

type pageClass struct {
	ID    int
	Name  string
	Glyph string
}

func (s *server) renderPage(w http.ResponseWriter) {
	data := pageData{
		Title:       "Human & Vehicle Detection",
		Glyph:       "🎯",
		Confidence:  s.cfg.Model.ConfidenceThreshold,
		ImageAccept: acceptList(image_exts),
		VideoAccept: acceptList(video_exts),
		Classes: seq.SMap(s.registry.All(), func(c classes.DetectionClass, _ int) pageClass {
			return pageClass{ID: c.ID, Name: c.Name, Glyph: c.Glyph}
		}),
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := page_template.Execute(w, data); err != nil {
		s.logger.Error("Can't render page", "error", err)
	}
}

func acceptList(exts []string) string {
	out := ""
	for i, e := range exts {
		if i > 0 {
			out += ","
		}
		out += e
	}
	return out
}
