package api

import "net/http"

// handleUI serves the web UI
func (s *Server) handleUI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(webUI))
}

const webUI = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>KOT Print Server</title>
<style>
*{box-sizing:border-box;margin:0;padding:0}
body{font-family:-apple-system,BlinkMacSystemFont,'Segoe UI',Roboto,sans-serif;background:#f5f5f5;color:#333;line-height:1.6}

/* Header */
.hdr{background:linear-gradient(135deg,#667eea 0%,#764ba2 100%);color:#fff;padding:14px 20px;display:flex;align-items:center;justify-content:space-between;position:sticky;top:0;z-index:100}
.hdr h1{font-size:18px;font-weight:600}
.hdr-right{display:flex;align-items:center;font-size:13px;gap:6px}
.sdot{width:10px;height:10px;border-radius:50%;display:inline-block}
.dot-green{background:#22c55e}.dot-red{background:#ef4444}.dot-gray{background:#9ca3af}

/* Tab bar */
.tabs{display:flex;border-bottom:2px solid #e5e7eb;background:#fff;padding:0 16px;position:sticky;top:48px;z-index:99}
.tab{padding:12px 20px;cursor:pointer;font-size:14px;font-weight:500;color:#666;border-bottom:2px solid transparent;margin-bottom:-2px}
.tab.active{color:#667eea;border-bottom-color:#667eea}

/* Content */
.content{max-width:900px;margin:0 auto;padding:20px}
.page{display:none}
.page.active{display:block}
.card{background:#fff;border-radius:8px;padding:20px;margin-bottom:16px;box-shadow:0 1px 3px rgba(0,0,0,.1)}
.card h2{font-size:16px;margin-bottom:12px;padding-bottom:8px;border-bottom:1px solid #eee}

/* Buttons */
.btn{display:inline-flex;align-items:center;gap:6px;padding:8px 16px;border-radius:6px;border:none;cursor:pointer;font-size:14px;font-weight:500;line-height:1.4}
.btn:disabled{opacity:.5;cursor:not-allowed}
.btn-primary{background:#667eea;color:#fff}.btn-primary:hover:not(:disabled){background:#5a67d8}
.btn-secondary{background:#e5e7eb;color:#374151}.btn-secondary:hover:not(:disabled){background:#d1d5db}
.btn-danger{background:#fff;color:#ef4444;border:1px solid #ef4444}.btn-danger:hover:not(:disabled){background:#fef2f2}
.btn-sm{padding:5px 10px;font-size:12px}
.btn-row{display:flex;gap:8px;flex-wrap:wrap;margin-top:12px}

/* Forms */
.form-row{display:grid;grid-template-columns:2fr 1fr 2fr auto;gap:10px;align-items:end}
.form-group label{display:block;font-size:13px;font-weight:500;margin-bottom:4px;color:#555}
.form-group input,.form-group select{width:100%;padding:8px 12px;border:1px solid #ddd;border-radius:6px;font-size:14px}
.form-group input:focus,.form-group select:focus{outline:none;border-color:#667eea}

/* Tables */
table{width:100%;border-collapse:collapse;font-size:14px}
th{text-align:left;font-size:12px;color:#888;font-weight:500;padding:6px 8px;border-bottom:1px solid #eee}
td{padding:8px;border-bottom:1px solid #f3f4f6}
.empty{text-align:center;color:#888;padding:24px}

/* Badges */
.badge{display:inline-block;padding:2px 10px;border-radius:20px;font-size:12px;font-weight:500}
.badge-green{background:#dcfce7;color:#166534}
.badge-red{background:#fee2e2;color:#991b1b}
.badge-yellow{background:#fef9c3;color:#854d0e}
.badge-gray{background:#f3f4f6;color:#374151}

/* Log viewer */
#log-viewer{background:#1a1a2e;color:#a0aec0;padding:15px;border-radius:6px;font-family:monospace;font-size:13px;max-height:420px;overflow-y:auto}
.log-time{color:#667eea}.log-error{color:#f87171}.log-warn{color:#fbbf24}.log-info{color:#a0aec0}

/* Toasts */
#toast-root{position:fixed;bottom:20px;right:20px;display:flex;flex-direction:column;gap:8px;z-index:200}
.toast{padding:10px 16px;border-radius:6px;color:#fff;font-size:14px;box-shadow:0 2px 8px rgba(0,0,0,.2);max-width:360px}
.toast-success{background:#22c55e}.toast-error{background:#ef4444}.toast-warn{background:#f59e0b}
</style>
</head>
<body>
<div class="hdr">
 <h1>KOT Print Server</h1>
 <div class="hdr-right"><span id="hdr-text">Connecting...</span><span class="sdot dot-gray" id="hdr-dot"></span></div>
</div>
<div class="tabs">
 <div class="tab active" data-page="order" onclick="nav('order')">Order</div>
 <div class="tab" data-page="printers" onclick="nav('printers')">Printers</div>
 <div class="tab" data-page="jobs" onclick="nav('jobs')">Jobs</div>
 <div class="tab" data-page="logs" onclick="nav('logs')">Logs</div>
</div>

<div class="content">
 <!-- Order -->
 <div class="page active" id="page-order">
  <div class="card">
   <h2>Add Item</h2>
   <form class="form-row" onsubmit="addItem(event)">
    <div class="form-group"><label for="item-name">Item</label><input id="item-name" placeholder="Soup"></div>
    <div class="form-group"><label for="item-qty">Qty</label><input id="item-qty" type="number" min="1" value="1"></div>
    <div class="form-group"><label for="item-printer">Printer</label><select id="item-printer" class="printer-select"></select></div>
    <button class="btn btn-primary" type="submit">Add</button>
   </form>
  </div>
  <div class="card">
   <h2>Current Order</h2>
   <table>
    <thead><tr><th>#</th><th>Item</th><th>Qty</th><th>Printer</th><th></th></tr></thead>
    <tbody id="order-body"><tr><td colspan="5" class="empty">No items</td></tr></tbody>
   </table>
   <div class="btn-row">
    <button class="btn btn-primary" id="btn-kot" onclick="printKOT()">Print KOT</button>
    <button class="btn btn-secondary" onclick="window.open('/kot.txt')">Ticket Text</button>
    <button class="btn btn-danger" onclick="clearOrder()">Clear</button>
   </div>
  </div>
  <div class="card">
   <h2>Receipt</h2>
   <div class="form-group"><label for="receipt-printer">Printer</label><select id="receipt-printer" class="printer-select"></select></div>
   <div class="btn-row"><button class="btn btn-primary" onclick="printReceipt()">Print Receipt</button></div>
  </div>
 </div>

 <!-- Printers -->
 <div class="page" id="page-printers">
  <div class="card">
   <h2>Printers</h2>
   <table>
    <thead><tr><th>Name</th><th>Type</th><th>Status</th><th></th></tr></thead>
    <tbody id="printer-body"><tr><td colspan="4" class="empty">No printers</td></tr></tbody>
   </table>
   <div class="btn-row">
    <button class="btn btn-secondary" onclick="refreshDirectory()">Refresh Directory</button>
    <button class="btn btn-secondary" id="btn-scan" onclick="scanPrinters()">Discover</button>
   </div>
   <div id="discovered" style="margin-top:12px"></div>
  </div>
 </div>

 <!-- Jobs -->
 <div class="page" id="page-jobs">
  <div class="card">
   <h2>Recent Jobs</h2>
   <table>
    <thead><tr><th>Printer</th><th>Kind</th><th>Status</th><th>Size</th><th>When</th></tr></thead>
    <tbody id="job-body"><tr><td colspan="5" class="empty">No jobs yet</td></tr></tbody>
   </table>
  </div>
 </div>

 <!-- Logs -->
 <div class="page" id="page-logs">
  <div class="card">
   <h2>Logs</h2>
   <div class="btn-row" style="margin:0 0 12px">
    <button class="btn btn-sm btn-secondary" onclick="setLogFilter('')">All</button>
    <button class="btn btn-sm btn-secondary" onclick="setLogFilter('warn,error')">Warnings</button>
    <button class="btn btn-sm btn-secondary" onclick="setLogFilter('error')">Errors</button>
   </div>
   <div id="log-viewer"></div>
  </div>
 </div>
</div>
<div id="toast-root"></div>

<script>
var printers = [];
var logFilter = '';

function nav(page) {
 var tabs = document.querySelectorAll('.tab');
 for (var i = 0; i < tabs.length; i++) tabs[i].classList.toggle('active', tabs[i].dataset.page === page);
 var pages = document.querySelectorAll('.page');
 for (var j = 0; j < pages.length; j++) pages[j].classList.toggle('active', pages[j].id === 'page-' + page);
 if (page === 'printers') refreshPrinters();
 if (page === 'jobs') refreshJobs();
 if (page === 'logs') refreshLogs();
}

// ============ Order ============
function renderOrder(items) {
 var body = document.getElementById('order-body');
 if (!items || items.length === 0) {
  body.innerHTML = '<tr><td colspan="5" class="empty">No items</td></tr>';
  return;
 }
 var html = '';
 for (var i = 0; i < items.length; i++) {
  var it = items[i];
  var p = it.printer_id ? esc(it.printer_id) : '<span class="badge badge-yellow">Unassigned</span>';
  html += '<tr><td>' + (i + 1) + '</td><td>' + esc(it.name) + '</td><td>' + it.quantity + '</td><td>' + p + '</td>' +
   '<td style="text-align:right"><button class="btn btn-sm btn-danger" onclick="removeItem(' + it.id + ')">Remove</button></td></tr>';
 }
 body.innerHTML = html;
}

function loadOrder() {
 fetch('/api/order/items').then(function(r){return r.json()}).then(function(data) {
  renderOrder(data.items);
 }).catch(function(){});
}

function addItem(e) {
 e.preventDefault();
 var body = {
  name: document.getElementById('item-name').value,
  quantity: document.getElementById('item-qty').value,
  printer_id: document.getElementById('item-printer').value
 };
 fetch('/api/order/items', {method:'POST', headers:{'Content-Type':'application/json'}, body:JSON.stringify(body)})
  .then(function(r){return r.json().then(function(d){return {ok:r.ok, data:d}})})
  .then(function(res) {
   if (!res.ok) { toast('Please enter a valid item name, quantity, and assign a printer. (' + res.data.error + ')', 'error'); return; }
   document.getElementById('item-name').value = '';
   document.getElementById('item-qty').value = '1';
   loadOrder();
  }).catch(function(){ toast('Network error', 'error'); });
}

function removeItem(id) {
 fetch('/api/order/items/' + id, {method:'DELETE'}).then(function(){ loadOrder(); });
}

function clearOrder() {
 fetch('/api/order/items', {method:'DELETE'}).then(function(){ loadOrder(); });
}

function printKOT() {
 var btn = document.getElementById('btn-kot');
 btn.disabled = true;
 fetch('/api/order/dispatch', {method:'POST'}).then(function(r){return r.json()}).then(function(data) {
  btn.disabled = false;
  var notices = (data.result && data.result.notices) || [];
  for (var i = 0; i < notices.length; i++) {
   var n = notices[i];
   toast(n.message, n.level === 'info' ? 'success' : (n.level === 'blocking' ? 'warn' : 'error'));
  }
  if (notices.length === 0 && data.error) toast(data.error, 'error');
  loadOrder();
 }).catch(function(){ btn.disabled = false; toast('Network error', 'error'); });
}

function printReceipt() {
 var printer = document.getElementById('receipt-printer').value;
 if (!printer) { toast('Please select a printer for the receipt.', 'warn'); return; }
 var body = {printer_id: printer, lines: [{label:'Item 1', amount:'10.00'}, {label:'Item 2', amount:'15.00'}]};
 fetch('/api/receipt', {method:'POST', headers:{'Content-Type':'application/json'}, body:JSON.stringify(body)})
  .then(function(r){return r.json()}).then(function(data) {
   if (data.success) toast('Receipt printed (' + data.total + ')', 'success');
   else toast('Print error: ' + data.error, 'error');
  }).catch(function(){ toast('Network error', 'error'); });
}

// ============ Printers ============
function fillPrinterSelects() {
 var selects = document.querySelectorAll('.printer-select');
 for (var i = 0; i < selects.length; i++) {
  var sel = selects[i];
  var current = sel.value;
  var html = '<option value="">Select Printer</option>';
  for (var j = 0; j < printers.length; j++) {
   html += '<option value="' + esc(printers[j].id) + '">' + esc(printers[j].name) + '</option>';
  }
  sel.innerHTML = html;
  sel.value = current;
 }
}

function refreshPrinters() {
 fetch('/api/printers').then(function(r){return r.json()}).then(function(data) {
  printers = data.printers || [];
  fillPrinterSelects();
  var body = document.getElementById('printer-body');
  if (printers.length === 0) {
   body.innerHTML = '<tr><td colspan="4" class="empty">No printers</td></tr>';
   return;
  }
  var html = '';
  for (var i = 0; i < printers.length; i++) {
   var p = printers[i];
   var badge = p.status === 'online' ? 'badge-green' : (p.status === 'offline' ? 'badge-red' : 'badge-gray');
   html += '<tr><td>' + esc(p.name) + '<br><small style="color:#888">' + esc(p.id) + '</small></td><td>' + esc(p.type) + '</td>' +
    '<td><span class="badge ' + badge + '">' + esc(p.status) + '</span></td>' +
    '<td style="text-align:right"><button class="btn btn-sm btn-secondary" onclick="testPrint(\'' + esc(p.id) + '\')">Test</button></td></tr>';
  }
  body.innerHTML = html;
 }).catch(function(){});
}

function refreshDirectory() {
 fetch('/api/printers/refresh', {method:'POST'}).then(function(r){return r.json()}).then(function(data) {
  if (data.error) toast('Error fetching printers: ' + data.error, 'error');
  else toast((data.directory || []).length + ' printer(s) available', 'success');
  refreshPrinters();
 }).catch(function(){ toast('Network error', 'error'); });
}

function scanPrinters() {
 var btn = document.getElementById('btn-scan');
 btn.disabled = true;
 fetch('/api/printers/discover', {method:'POST'}).then(function(r){return r.json()}).then(function(data) {
  btn.disabled = false;
  var found = data.discovered || [];
  var html = '';
  for (var i = 0; i < found.length; i++) {
   html += '<div class="badge badge-gray" style="margin:2px">' + esc(found[i].address) + ':' + found[i].port + '</div>';
  }
  document.getElementById('discovered').innerHTML = found.length ? html : '<div class="empty">Nothing found</div>';
 }).catch(function(){ btn.disabled = false; toast('Network error', 'error'); });
}

function testPrint(id) {
 fetch('/api/printers/' + encodeURIComponent(id) + '/test', {method:'POST'}).then(function(r){return r.json()}).then(function(data) {
  if (data.success) toast('Test print sent', 'success');
  else toast('Test print failed: ' + data.error, 'error');
 }).catch(function(){ toast('Network error', 'error'); });
}

// ============ Jobs ============
function refreshJobs() {
 fetch('/api/jobs').then(function(r){return r.json()}).then(function(data) {
  var jobs = data.jobs || [];
  var body = document.getElementById('job-body');
  if (jobs.length === 0) {
   body.innerHTML = '<tr><td colspan="5" class="empty">No jobs yet</td></tr>';
   return;
  }
  var html = '';
  for (var i = 0; i < jobs.length; i++) {
   var j = jobs[i];
   var badge = j.status === 'completed' ? 'badge-green' : (j.status === 'failed' ? 'badge-red' : 'badge-yellow');
   html += '<tr><td>' + esc(j.printer_id) + '</td><td>' + esc(j.kind) + '</td>' +
    '<td><span class="badge ' + badge + '" title="' + esc(j.error) + '">' + esc(j.status) + '</span></td>' +
    '<td>' + j.data_size + ' B</td><td>' + timeAgo(j.created_at) + '</td></tr>';
  }
  body.innerHTML = html;
 }).catch(function(){});
}

// ============ Logs ============
function refreshLogs() {
 var levelParam = logFilter ? '?level=' + logFilter : '';
 fetch('/api/logs' + levelParam).then(function(r){return r.json()}).then(function(data) {
  var logs = data.logs || [];
  var html = '';
  for (var i = logs.length - 1; i >= 0; i--) {
   var l = logs[i];
   var ts = l.timestamp ? new Date(l.timestamp).toLocaleString() : '';
   var lc = l.level === 'error' ? 'log-error' : (l.level === 'warn' ? 'log-warn' : 'log-info');
   html += '<div><span class="log-time">[' + esc(ts) + ']</span> <span class="' + lc + '">' + esc((l.level || 'info').toUpperCase()) + '</span> ' + esc(l.message) + '</div>';
  }
  document.getElementById('log-viewer').innerHTML = logs.length ? html : '<div style="color:#555">No log entries</div>';
 }).catch(function(){});
}

function setLogFilter(filter) {
 logFilter = filter;
 refreshLogs();
}

// ============ Live updates ============
function setHeader(ok, text) {
 document.getElementById('hdr-dot').className = 'sdot ' + (ok ? 'dot-green' : 'dot-red');
 document.getElementById('hdr-text').textContent = text;
}

function connectLive() {
 var proto = location.protocol === 'https:' ? 'wss://' : 'ws://';
 var ws = new WebSocket(proto + location.host + '/ws');
 ws.onopen = function() { setHeader(true, 'Live'); };
 ws.onmessage = function(ev) {
  var msg = JSON.parse(ev.data);
  if (msg.type === 'ledger') renderOrder(msg.items);
 };
 ws.onclose = function() {
  setHeader(false, 'Reconnecting...');
  setTimeout(connectLive, 3000);
 };
}

// ============ UI Helpers ============
function toast(msg, type) {
 var root = document.getElementById('toast-root');
 var el = document.createElement('div');
 el.className = 'toast toast-' + (type || 'success');
 el.textContent = msg;
 root.appendChild(el);
 setTimeout(function() { el.remove(); }, 4000);
}

function esc(s) {
 if (s === undefined || s === null) return '';
 var d = document.createElement('div');
 d.appendChild(document.createTextNode(String(s)));
 return d.innerHTML;
}

function timeAgo(ts) {
 if (!ts) return '-';
 var secs = Math.floor((Date.now() - new Date(ts).getTime()) / 1000);
 if (secs < 5) return 'just now';
 if (secs < 60) return secs + 's ago';
 if (secs < 3600) return Math.floor(secs/60) + 'm ago';
 if (secs < 86400) return Math.floor(secs/3600) + 'h ago';
 return Math.floor(secs/86400) + 'd ago';
}

// Init
refreshPrinters();
loadOrder();
connectLive();
</script>
</body>
</html>`
