package sip

// Equals implements SIP-URI comparison per RFC 3261 19.1.4.
//
// In strict mode (lazy == false) every component governed by the RFC is
// compared: scheme, user, password, host, port (with default-port
// equivalence to the scheme's transport), and uri-parameters. A routing
// parameter (transport, user, ttl, method, maddr) present in only one
// URI causes inequality, whatever its value; any other uri-parameter
// present in only one of the two URIs is ignored, and one present in
// both must match. Headers must match as a set.
//
// In lazy mode (lazy == true) sipkit relaxes this to scheme+user+host
// only, the pragmatic equivalence most middleware actually needs for
// matching a Contact/Route against a known binding.
func (uri *Uri) Equals(other *Uri, lazy bool) bool {
	if uri == nil || other == nil {
		return uri == other
	}

	if uri.IsEncrypted() != other.IsEncrypted() {
		return false
	}
	if uri.User != other.User {
		return false
	}
	if !hostEquals(uri.Host, other.Host) {
		return false
	}

	if lazy {
		return true
	}

	if uri.Password != other.Password {
		return false
	}
	if !portEquals(uri.Port, other.Port, uri.IsEncrypted()) {
		return false
	}
	if !uriParamsEquals(uri.UriParams, other.UriParams) {
		return false
	}
	if !headersEquals(uri.Headers, other.Headers) {
		return false
	}

	return true
}

func hostEquals(a, b string) bool {
	return ASCIIToLower(a) == ASCIIToLower(b)
}

func portEquals(a, b int, encrypted bool) bool {
	def := 5060
	if encrypted {
		def = 5061
	}
	if a == 0 {
		a = def
	}
	if b == 0 {
		b = def
	}
	return a == b
}

// routingParams lists the uri-parameters that participate in strict
// comparison even when present on only one side, per 19.1.4's table.
var routingParams = []string{"user", "ttl", "method", "transport", "maddr"}

func uriParamsEquals(a, b HeaderParams) bool {
	for _, key := range routingParams {
		av, aok := a.Get(key)
		bv, bok := b.Get(key)
		if aok != bok {
			return false
		}
		if aok && !paramValueEquals(key, av, bv) {
			return false
		}
	}

	// Any other uri-parameter must match on both sides if present on
	// both; a parameter present on only one side is ignored there.
	for _, key := range a.Keys() {
		if containsRouting(key) {
			continue
		}
		bv, bok := b.Get(key)
		if !bok {
			continue
		}
		av, _ := a.Get(key)
		if !paramValueEquals(key, av, bv) {
			return false
		}
	}

	return true
}

func containsRouting(key string) bool {
	for _, r := range routingParams {
		if r == key {
			return true
		}
	}
	return false
}

func paramValueEquals(key, a, b string) bool {
	if key == "transport" || key == "method" {
		return ASCIIToLower(a) == ASCIIToLower(b)
	}
	return a == b
}

// headersEquals compares the ?header=value portion as an unordered set,
// same rule HeaderParams.Equals already applies to param lists.
func headersEquals(a, b HeaderParams) bool {
	return a.Equals(b)
}
