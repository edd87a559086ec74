package browser

import (
	"encoding/json"
	"fmt"
)

const (
	overlayElementID = "boardkiosk-offline-overlay"
	styleElementID   = "boardkiosk-custom-style"
	logoClass        = "logo-bottom-right"
)

// createOverlayScript inserts the overlay hidden, or refreshes its content if it already exists.
const createOverlayScript = `(function(id, html) {
	var el = document.getElementById(id);
	if (!el) {
		el = document.createElement('div');
		el.id = id;
		Object.assign(el.style, {
			position: 'fixed',
			top: '0',
			left: '0',
			width: '100vw',
			height: '100vh',
			backgroundColor: 'rgba(0, 0, 0, 0.95)',
			zIndex: '99999',
			display: 'none',
			justifyContent: 'center',
			alignItems: 'center',
			color: 'white',
			fontFamily: 'sans-serif',
			textAlign: 'center'
		});
		(document.body || document.documentElement).appendChild(el);
	}
	el.innerHTML = html;
	return true;
})(%s, %s)`

const overlayVisibilityScript = `(function(id, visible) {
	var el = document.getElementById(id);
	if (!el) {
		return false;
	}
	el.style.display = visible ? 'flex' : 'none';
	return true;
})(%s, %t)`

// styleScript creates or updates the single custom style element. The stylesheet travels
// Base64-encoded and is decoded as UTF-8 in the page.
const styleScript = `(function(id, b64) {
	var apply = function() {
		var el = document.getElementById(id);
		if (!el) {
			el = document.createElement('style');
			el.id = id;
			(document.head || document.documentElement).appendChild(el);
		}
		try {
			var bytes = Uint8Array.from(atob(b64), function(c) { return c.charCodeAt(0); });
			el.textContent = new TextDecoder('utf-8').decode(bytes);
		} catch (e) {
			console.error('[boardkiosk] failed to decode stylesheet: ' + e);
		}
	};
	if (document.readyState === 'loading') {
		document.addEventListener('DOMContentLoaded', apply);
	} else {
		apply();
	}
})(%s, %s)`

const logoScript = `(function(cls, src) {
	var apply = function() {
		if (document.querySelector('img.' + cls)) {
			return;
		}
		var img = document.createElement('img');
		img.src = src;
		img.classList.add(cls);
		Object.assign(img.style, {
			position: 'fixed',
			right: '1vw',
			bottom: '1vh',
			maxHeight: '12vh',
			zIndex: '9999',
			pointerEvents: 'none'
		});
		document.body.appendChild(img);
	};
	if (document.readyState === 'loading') {
		document.addEventListener('DOMContentLoaded', apply);
	} else {
		apply();
	}
})(%s, %s)`

// viewModeScript returns "missing", "active" or "clicked".
const viewModeScript = `(function(label) {
	var btn = document.querySelector('button[aria-label="' + CSS.escape(label) + '"]');
	if (!btn) {
		return 'missing';
	}
	if (btn.hasAttribute('data-active')) {
		return 'active';
	}
	btn.click();
	return 'clicked';
})(%s)`

// fillLoginScript returns false while the form is not rendered yet. Values are set through
// the native setter so framework-controlled inputs notice the change.
const fillLoginScript = `(function(username, password) {
	var user = document.getElementById('username');
	var pass = document.getElementById('password');
	var submit = document.getElementById('kc-login');
	if (!user || !pass || !submit) {
		return false;
	}
	var setter = Object.getOwnPropertyDescriptor(window.HTMLInputElement.prototype, 'value').set;
	setter.call(user, username);
	user.dispatchEvent(new Event('input', { bubbles: true }));
	setter.call(pass, password);
	pass.dispatchEvent(new Event('input', { bubbles: true }));
	var remember = document.getElementById('rememberMe');
	if (remember && !remember.checked) {
		remember.click();
	}
	return true;
})(%s, %s)`

const submitLoginScript = `(function() {
	var submit = document.getElementById('kc-login');
	if (!submit) {
		return false;
	}
	submit.click();
	return true;
})()`

// jsString renders s as a JavaScript string literal. encoding/json escapes <, > and &,
// so the literal is also safe inside inline markup.
func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func buildCreateOverlay(fragment string) string {
	return fmt.Sprintf(createOverlayScript, jsString(overlayElementID), jsString(fragment))
}

func buildOverlayVisibility(visible bool) string {
	return fmt.Sprintf(overlayVisibilityScript, jsString(overlayElementID), visible)
}

func buildStyle(b64 string) string {
	return fmt.Sprintf(styleScript, jsString(styleElementID), jsString(b64))
}

func buildLogo(src string) string {
	return fmt.Sprintf(logoScript, jsString(logoClass), jsString(src))
}

func buildViewMode(label string) string {
	return fmt.Sprintf(viewModeScript, jsString(label))
}

func buildFillLogin(username, password string) string {
	return fmt.Sprintf(fillLoginScript, jsString(username), jsString(password))
}
