// Package pulp lists the Python package indexes exposed by a Pulp instance.
//
// A Pulp instance publishes every pulp-python distribution under the
// distributions API. Each distribution carries a base_url from which the
// PEP 503 simple index URL is derived:
//
//	base_url "/pypi/foo/"  ->  https://<instance>/pypi/foo/simple
//	base_url "/pypi/foo"   ->  https://<instance>/pypi/foo/simple
//
// The derived path is always served from the instance host, even when
// base_url is an absolute URL with its own authority.
package pulp
