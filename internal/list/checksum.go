package list

import (
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"fmt"
	"hash"
)

// checksums are the hash functions accepted by Options.Checksum.
var checksums = map[string]func() hash.Hash{
	"sha1":   sha1.New,
	"sha224": sha512.New512_224,
	"sha256": sha256.New,
	"sha384": sha512.New384,
	"sha512": sha512.New,
}

// digest hashes entry data and formats the result as a Subresource Integrity string such as "sha256-...".
//
// See https://developer.mozilla.org/en-US/docs/Web/Security/Subresource_Integrity.
type digest struct {
	hash.Hash
	name string
}

func newDigest(name string) (*digest, error) {
	fn, ok := checksums[name]
	if !ok {
		return nil, fmt.Errorf(`unsupported checksum "%s"`, name)
	}

	return &digest{Hash: fn(), name: name}, nil
}

func (d *digest) String() string {
	return d.name + "-" + base64.RawStdEncoding.EncodeToString(d.Sum(nil))
}
