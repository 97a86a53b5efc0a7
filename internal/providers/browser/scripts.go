package browser

import (
	"fmt"

	"github.com/GriffinCanCode/webharvest/internal/domain/operation"
)

// captureScript serializes the live document into the snapshot shape and
// stamps each element with its path. Own text is trimmed and capped.
var captureScript = fmt.Sprintf(`(maxText) => {
  const attr = %q;
  const walk = (el, path) => {
    el.setAttribute(attr, path);
    const node = { path: path, tag: el.tagName.toLowerCase() };
    if (el.id) node.id = el.id;
    if (el.classList.length) node.classes = Array.from(el.classList);
    let text = "";
    for (const c of el.childNodes) {
      if (c.nodeType === Node.TEXT_NODE) text += c.textContent;
    }
    text = text.replace(/\s+/g, " ").trim();
    if (text) node.text = text.slice(0, maxText);
    const attrs = {};
    for (const a of el.attributes) {
      if (a.name === attr || a.name === "id" || a.name === "class") continue;
      attrs[a.name] = a.value;
    }
    if (Object.keys(attrs).length) node.attrs = attrs;
    const kids = [];
    let i = 0;
    for (const c of el.children) {
      kids.push(walk(c, path + "/" + i));
      i++;
    }
    if (kids.length) node.children = kids;
    return node;
  };
  return walk(document.documentElement, "root");
}`, operation.PathAttribute)

// scrollScript scrolls the window, or an element when a selector is given.
// Zero offsets bring the element into view.
const scrollScript = `(selector, dx, dy) => {
  if (!selector) {
    window.scrollBy(dx, dy);
    return true;
  }
  const el = document.querySelector(selector);
  if (!el) throw new Error("element not found: " + selector);
  if (dx === 0 && dy === 0) {
    el.scrollIntoView({ block: "center", inline: "nearest" });
  } else {
    el.scrollBy(dx, dy);
  }
  return true;
}`

// maxTextLength bounds the own text captured per element
const maxTextLength = 512
