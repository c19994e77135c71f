package media

import "github.com/Jari57/studio-agents-sub002/runtime/blob"

// Reference is the canonical output of resolution. The empty Reference
// means there is nothing to render.
type Reference string

// Class categorizes a Reference.
type Class string

// Reference classes.
const (
	ClassEmpty   Class = "empty"
	ClassRemote  Class = "remote_url"
	ClassLocal   Class = "local_ref"
	ClassDataURI Class = "data_uri"
	ClassOther   Class = "other"
)

// URL scheme prefixes passed through untouched.
const (
	schemeHTTP  = "http://"
	schemeHTTPS = "https://"
)

// Class reports which kind of reference r is.
func (r Reference) Class() Class {
	s := string(r)
	switch {
	case s == "":
		return ClassEmpty
	case isRemote(s):
		return ClassRemote
	case blob.IsLocalRef(s):
		return ClassLocal
	case blob.HasScheme(s, blob.SchemeData):
		return ClassDataURI
	default:
		return ClassOther
	}
}

// IsEmpty reports whether r carries nothing to render.
func (r Reference) IsEmpty() bool {
	return r == ""
}

// String returns r as a plain string.
func (r Reference) String() string {
	return string(r)
}

func isRemote(s string) bool {
	return blob.HasScheme(s, schemeHTTP) || blob.HasScheme(s, schemeHTTPS)
}
