package dashboard

import (
	"html/template"

	"exboard/internal/exceptions"
)

var funcMap = template.FuncMap{
	"isError": func(n *exceptions.Notice) bool {
		return n != nil && n.Kind == exceptions.NoticeError
	},
}

const tmplRows = `
{{define "rows"}}{{with .Notice}}<tr class="notice {{if isError $.Notice}}error{{else}}info{{end}}"><td colspan="4">{{.Text}}</td></tr>{{end}}{{range .Rows}}<tr><td>{{.When}}</td><td>{{.Asset}}</td><td>{{.Rule}}</td><td>{{.Duration}}</td></tr>{{end}}{{end}}
`

const tmplPage = `
{{define "page"}}<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width,initial-scale=1">
<title>Exception Dashboard</title>
<style>
*{box-sizing:border-box;margin:0;padding:0}
body{font-family:sans-serif;background:#f6f8fa;color:#24292f;font-size:13px;line-height:1.5;padding:16px}
h1{font-size:16px;font-weight:700;margin-bottom:12px}
.filters{display:flex;gap:12px;margin-bottom:12px}
select{padding:4px 8px;border:1px solid #d0d7de;border-radius:4px;background:#fff}
table{width:100%;border-collapse:collapse;background:#fff}
th{text-align:left;padding:6px 10px;border-bottom:1px solid #d0d7de;color:#57606a;font-size:11px;text-transform:uppercase}
td{padding:5px 10px;border-bottom:1px solid #eaeef2}
tr.notice td{text-align:center;color:#57606a}
tr.notice.error td{color:#cf222e}
#loading{padding:8px 0;color:#57606a}
#loading.hidden{display:none}
</style>
</head>
<body data-session="{{.SessionID}}">
<h1>Exceptions, previous day</h1>
<div class="filters">
  <select id="rule-filter" name="ruleId"{{if .Failed}} disabled{{end}}>
  {{range .RuleOptions}}<option value="{{.Value}}"{{if eq .Value $.SelectedRule}} selected{{end}}>{{.Label}}</option>
  {{end}}</select>
  <select id="asset-filter" name="deviceId"{{if .Failed}} disabled{{end}}>
  {{range .AssetOptions}}<option value="{{.Value}}"{{if eq .Value $.SelectedAsset}} selected{{end}}>{{.Label}}</option>
  {{end}}</select>
</div>
<div id="loading"{{if not .View.Loading}} class="hidden"{{end}}>{{.View.LoadingText}}</div>
<table>
<thead><tr><th>When</th><th>Asset</th><th>Rule</th><th>Duration</th></tr></thead>
<tbody id="results">{{template "rows" .View}}</tbody>
</table>
<script>
(function(){
  var session = document.body.dataset.session;
  if (!session) return;
  var rule = document.getElementById('rule-filter');
  var asset = document.getElementById('asset-filter');
  var body = document.getElementById('results');
  var loading = document.getElementById('loading');
  function showError(detail){
    body.innerHTML = '';
    var tr = document.createElement('tr');
    tr.className = 'notice error';
    var td = document.createElement('td');
    td.colSpan = 4;
    td.textContent = {{.FetchErrorPrefix}} + detail;
    tr.appendChild(td);
    body.appendChild(tr);
  }
  function load(){
    body.innerHTML = '';
    loading.textContent = {{.LoadingMessage}};
    loading.classList.remove('hidden');
    var q = new URLSearchParams({ruleId: rule.value, deviceId: asset.value});
    fetch('/sessions/' + encodeURIComponent(session) + '/exceptions?' + q.toString())
      .then(function(r){
        if (r.status === 204) return null;
        var html = (r.headers.get('Content-Type') || '').indexOf('text/html') === 0;
        return r.text().then(function(t){ return {ok: r.ok, html: html, status: r.status, text: t}; });
      })
      .then(function(res){
        if (res === null) return;
        loading.classList.add('hidden');
        if (res.html) { body.innerHTML = res.text; return; }
        var detail = res.status + ' ' + res.text;
        try { detail = JSON.parse(res.text).error || detail; } catch (e) {}
        showError(detail);
      })
      .catch(function(err){
        loading.classList.add('hidden');
        showError(err && err.message ? err.message : String(err));
      });
  }
  rule.addEventListener('change', load);
  asset.addEventListener('change', load);
})();
</script>
</body>
</html>{{end}}
`

var pageTemplate = template.Must(template.New("dashboard").Funcs(funcMap).Parse(tmplPage + tmplRows))
