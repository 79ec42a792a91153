package rod

const (
	articleHTML = `<!DOCTYPE html>
<html>
<head><title>Research Page</title></head>
<body>
	<h1>Grid storage</h1>
	<a href="/second" id="link1">Second page</a>
	<input id="query" type="text" placeholder="Search terms" />
	<button id="go" aria-label="Run search">Go</button>
	<div id="result"></div>
	<script>
		document.getElementById('go').addEventListener('click', function() {
			document.getElementById('result').textContent = document.getElementById('query').value;
		});
	</script>
</body>
</html>`

	secondHTML = `<!DOCTYPE html>
<html>
<head><title>Second</title></head>
<body><p>Second page body</p></body>
</html>`

	tallHTML = `<!DOCTYPE html>
<html>
<body style="height: 5000px;">
	<h1 id="top">Top of Page</h1>
	<div style="margin-top: 4000px;" id="bottom">Bottom</div>
</body>
</html>`
)
