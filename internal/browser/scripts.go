package browser

import (
	"encoding/json"
	"fmt"
)

// RootID is the id of the element every container is appended to.
const RootID = "vizTargetRoot"

// jsString quotes s as a JavaScript string literal.
func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func newContainerJS(id string) string {
	return fmt.Sprintf(`(() => {
  const root = document.getElementById(%s);
  if (!root) throw new Error('runner page has no #' + %s);
  const el = document.createElement('div');
  el.id = %s;
  root.appendChild(el);
  return el.id;
})()`, jsString(RootID), jsString(RootID), jsString(id))
}

func removeContainerJS(id string) string {
	return fmt.Sprintf(`(() => { const el = document.getElementById(%s); if (el) el.remove(); return true; })()`, jsString(id))
}

func clearRootJS() string {
	return fmt.Sprintf(`(() => {
  const root = document.getElementById(%s);
  while (root && root.lastChild) root.removeChild(root.lastChild);
  return true;
})()`, jsString(RootID))
}

func setHTMLJS(id, html string) string {
	return fmt.Sprintf(`(() => { document.getElementById(%s).innerHTML = %s; return true; })()`, jsString(id), jsString(html))
}

// evalJS wraps body as an async function of the container element.
func evalJS(id, body string) string {
	return fmt.Sprintf(`(async (el) => { %s })(document.getElementById(%s))`, body, jsString(id))
}

func existsJS(selector string) string {
	return fmt.Sprintf(`document.querySelector(%s) !== null`, jsString(selector))
}

// measureJS reports the target's page box and its parent's padding in the
// shape of viz.Geometry.
func measureJS(containerID, selector string) string {
	return fmt.Sprintf(`(() => {
  const sel = %s;
  const el = document.querySelector(sel);
  if (!el) throw new Error('no element matches ' + sel);
  const r = el.getBoundingClientRect();
  const p = el.parentElement;
  const out = {
    box: {x: r.left + window.scrollX, y: r.top + window.scrollY, width: r.width, height: r.height},
    hasParent: !!p,
    parentIsContainer: !!p && p.id === %s,
    parentPadding: {top: 0, right: 0, bottom: 0, left: 0},
  };
  if (p) {
    const cs = getComputedStyle(p);
    out.parentPadding = {
      top: parseFloat(cs.paddingTop) || 0,
      right: parseFloat(cs.paddingRight) || 0,
      bottom: parseFloat(cs.paddingBottom) || 0,
      left: parseFloat(cs.paddingLeft) || 0,
    };
  }
  return out;
})()`, jsString(selector), jsString(containerID))
}

// pointJS scrolls the element into view and returns its centre in viewport
// coordinates.
func pointJS(selector string) string {
	return fmt.Sprintf(`(() => {
  const sel = %s;
  const el = document.querySelector(sel);
  if (!el) throw new Error('no element matches ' + sel);
  el.scrollIntoView({block: 'nearest', inline: 'nearest'});
  const r = el.getBoundingClientRect();
  return {x: r.left + r.width / 2, y: r.top + r.height / 2};
})()`, jsString(selector))
}
