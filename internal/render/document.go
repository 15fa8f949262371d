package render

import (
	"bytes"
	"fmt"
	"html/template"
)

type documentData struct {
	Title        string
	Body         string
	RunID        string
	ExperimentID string
}

var documentTmpl = template.Must(template.New("sandbox").Parse(documentSource))

// buildDocument renders the sandbox document. html/template's
// contextual escaping embeds Body and the identifiers as JS string
// literals, so the chart source is data until the sandbox realm
// evaluates it.
func buildDocument(data documentData) (string, error) {
	var buf bytes.Buffer
	if err := documentTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute sandbox template: %w", err)
	}
	return buf.String(), nil
}

// documentSource is the standalone sandbox realm. It defines the
// granted capabilities, evaluates the chart body against them inside
// try/catch, and mounts the result in a fixed-size container. The
// realm loads no external resources and shares nothing with a hosting
// application.
const documentSource = `<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<style>
  body { margin: 0; font-family: system-ui, sans-serif; background: #ffffff; }
  #chart-root { width: 100%; max-width: 720px; height: 360px; margin: 16px auto; overflow: hidden; }
  .chart-error { padding: 12px 16px; border: 1px solid #c0392b; border-radius: 4px; color: #c0392b; background: #fdf0ee; font-size: 14px; }
</style>
</head>
<body>
<div id="chart-root"></div>
<script>
"use strict";
(function () {
  var SVG_NS = "http://www.w3.org/2000/svg";
  var svgTags = {
    svg: 1, g: 1, path: 1, rect: 1, circle: 1, line: 1, polyline: 1,
    polygon: 1, text: 1, defs: 1, linearGradient: 1, stop: 1
  };
  // SVG attributes that stay camelCase; everything else follows the
  // React convention of camelCase props mapping to kebab-case attributes.
  var camelAttrs = { viewBox: 1, preserveAspectRatio: 1, gradientUnits: 1, textLength: 1 };

  function attrName(key) {
    if (camelAttrs[key]) return key;
    return key.replace(/[A-Z]/g, function (c) { return "-" + c.toLowerCase(); });
  }

  function applyProps(el, props) {
    if (!props) return;
    for (var key in props) {
      if (key === "children") continue;
      var val = props[key];
      if (key === "style" && typeof val === "object") {
        for (var s in val) el.style[s] = val[s];
      } else if (key === "className") {
        el.setAttribute("class", val);
      } else if (typeof val !== "function" && typeof val !== "object") {
        el.setAttribute(attrName(key), val);
      }
    }
  }

  function appendChild(el, child) {
    if (child === null || child === undefined || child === false) return;
    if (Array.isArray(child)) {
      for (var i = 0; i < child.length; i++) appendChild(el, child[i]);
      return;
    }
    if (child instanceof Node) {
      el.appendChild(child);
      return;
    }
    el.appendChild(document.createTextNode(String(child)));
  }

  // createElement resolves the tree eagerly: component functions are
  // invoked with their props, tag names become DOM nodes.
  function createElement(type, props) {
    var children = Array.prototype.slice.call(arguments, 2);
    if (typeof type === "function") {
      var merged = props || {};
      merged.children = children;
      return type(merged);
    }
    var el;
    if (type === React.Fragment) {
      el = document.createDocumentFragment();
    } else if (svgTags[type]) {
      el = document.createElementNS(SVG_NS, type);
    } else {
      el = document.createElement(type);
    }
    if (el.nodeType !== 11) applyProps(el, props);
    appendChild(el, props && props.children);
    appendChild(el, children);
    return el;
  }

  var React = { createElement: createElement, Fragment: "__fragment__" };

  // The document is a static snapshot: state never changes after the
  // first render, effects run exactly once after mount.
  var effects = [];
  function useState(initial) {
    return [initial, function () {}];
  }
  function useEffect(effect) {
    effects.push(effect);
  }

  var root = document.getElementById("chart-root");
  try {
    var factory = new Function("React", "useState", "useEffect", "runId", "experimentId", {{.Body}});
    var result = factory(React, useState, useEffect, {{.RunID}}, {{.ExperimentID}});
    if (typeof result === "function") {
      result = result({ runId: {{.RunID}}, experimentId: {{.ExperimentID}} });
    }
    appendChild(root, result);
    for (var i = 0; i < effects.length; i++) effects[i]();
  } catch (err) {
    root.innerHTML = "";
    var panel = document.createElement("div");
    panel.className = "chart-error";
    panel.textContent = "Chart failed to render: " + (err && err.message ? err.message : String(err));
    root.appendChild(panel);
  }
})();
</script>
</body>
</html>
`
