// Package render turns a pipeline graph and its run outputs into text: Graphviz
// DOT for topology and go-pretty tables for terminals and Markdown.
package render
