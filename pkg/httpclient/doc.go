// Package httpclient provides the zero-trust HTTP transport used to fetch
// graph and node artifacts over the network. See New.
package httpclient
