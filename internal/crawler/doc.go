// Package crawler implements the storefront crawl core: URL filtering, the
// frontier, and the engine that classifies pages, extracts products and hands
// observations to a Store.
package crawler
