package server

import "html/template"

type verifyPageData struct {
	UserID      int64
	BotUsername string
}

// The page fingerprints the browser and posts the result back, so one
// device can verify only one account.
var verifyPage = template.Must(template.New("verify").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Verify</title></head>
<body style="background:black;color:white;text-align:center;font-family:sans-serif">
<h1>Verify</h1>
<p id="msg"></p>
<button onclick="go()">Verify Now</button>
<script>
function deviceID() {
  return btoa(navigator.userAgent + screen.width + screen.height + navigator.platform);
}
function go() {
  fetch('/verify', {
    method: 'POST',
    headers: {'Content-Type': 'application/json'},
    body: JSON.stringify({user: {{.UserID}}, device: deviceID()})
  })
  .then(function (r) { return r.json(); })
  .then(function (res) {
    if (res.status === 'success') {
      window.location = 'https://t.me/{{.BotUsername}}';
    } else {
      document.getElementById('msg').textContent = res.msg;
    }
  });
}
</script>
</body>
</html>
`))
