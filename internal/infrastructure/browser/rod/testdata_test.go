package rod

const (
	loginHTML = `<!DOCTYPE html>
<html>
<head><title>Sign in</title></head>
<body style="margin:0">
	<form id="login">
		<input id="username" type="text" name="username" autofocus
			style="position:absolute;left:0;top:0;width:400px;height:40px" />
		<button id="submit" type="button"
			style="position:absolute;left:0;top:100px;width:200px;height:40px">Sign in</button>
	</form>
	<div id="result"></div>
	<script>
		document.getElementById('submit').addEventListener('click', function() {
			document.getElementById('result').textContent = 'Clicked ' + document.getElementById('username').value;
		});
		document.addEventListener('keydown', function(e) {
			if (e.key === 'Enter') document.getElementById('result').textContent = 'Enter';
		});
	</script>
</body>
</html>`

	scheduleHTML = `<!DOCTYPE html>
<html>
<head><title>My Class Schedule</title><script>var x = 1;</script></head>
<body>
	<h1>Spring 2026</h1>
	<table id="CLASS_TBL" data-grid="1">
		<tr><th>Class</th><th>Days &amp; Times</th><th>Room</th></tr>
		<tr><td>CSE 2221 - Software I</td><td>MoWeFr 9:10AM - 10:05AM</td><td>Dreese Lab 264</td></tr>
	</table>
</body>
</html>`
)
