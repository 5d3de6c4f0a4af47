package httpclient

import "errors"

var (
	ErrNilConfig            = errors.New("vectorflow/httpclient: config is nil")
	ErrInvalidURL           = errors.New("vectorflow/httpclient: invalid URL")
	ErrSchemeNotAllowed     = errors.New("vectorflow/httpclient: scheme not allowed")
	ErrMissingHostname      = errors.New("vectorflow/httpclient: missing hostname in URL")
	ErrDomainNotAllowed     = errors.New("vectorflow/httpclient: domain not in allowed list")
	ErrLoopbackBlocked      = errors.New("vectorflow/httpclient: loopback address blocked")
	ErrLinkLocalBlocked     = errors.New("vectorflow/httpclient: link-local address blocked")
	ErrPrivateIPBlocked     = errors.New("vectorflow/httpclient: private IP address blocked")
	ErrCloudMetadataBlocked = errors.New("vectorflow/httpclient: cloud metadata endpoint blocked")
	ErrResponseTooLarge     = errors.New("vectorflow/httpclient: response exceeds max response size")
	ErrTooManyRedirects     = errors.New("vectorflow/httpclient: too many redirects")
)
