package driver

import (
	"net/url"
	"strings"
)

// AuthType is the authentication mechanism a connection string implies.
type AuthType string

const (
	AuthTypeScram          AuthType = "scram"
	AuthTypeX509           AuthType = "x.509"
	AuthTypeKerberos       AuthType = "kerberos"
	AuthTypeLDAP           AuthType = "ldap"
	AuthTypeOIDCAuthFlow   AuthType = "oidc-auth-flow"
	AuthTypeOIDCDeviceFlow AuthType = "oidc-device-flow"
)

// IsOIDC reports whether a belongs to either OIDC variant.
func (a AuthType) IsOIDC() bool {
	return strings.HasPrefix(string(a), "oidc")
}

// InferAuthType reads the authMechanism query parameter from a MongoDB
// connection string and maps it to an AuthType. canUseBrowser controls
// which OIDC flow is chosen when authMechanism=MONGODB-OIDC: the
// auth-code flow needs a way to open a browser and receive a loopback
// callback; otherwise the device flow is used.
func InferAuthType(connectionString string, canUseBrowser bool) AuthType {
	u, err := url.Parse(connectionString)
	if err != nil {
		return AuthTypeScram
	}
	mechanism := strings.ToUpper(u.Query().Get("authMechanism"))
	switch mechanism {
	case "MONGODB-X509":
		return AuthTypeX509
	case "GSSAPI":
		return AuthTypeKerberos
	case "PLAIN":
		return AuthTypeLDAP
	case "MONGODB-OIDC":
		if canUseBrowser {
			return AuthTypeOIDCAuthFlow
		}
		return AuthTypeOIDCDeviceFlow
	default:
		return AuthTypeScram
	}
}
