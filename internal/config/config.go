package config

import (
	"io/fs"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
)

// HeaderConfig contains the ownership and permission defaults applied to packed entries.
//
// Zero values mean "take it from the file being packed".
type HeaderConfig struct {
	Uname, Gname string
	Uid, Gid     *int
	FileMode     fs.FileMode
	DirMode      fs.FileMode
}

// ForHeader returns configuration from the [header] section.
//
// Invalid numbers are ignored.
func (l *Loader) ForHeader() (c HeaderConfig) {
	sec, err := l.file().GetSection("header")
	if err != nil {
		return c
	}

	c.Uname = sec.Key("uname").String()
	c.Gname = sec.Key("gname").String()

	if v, err := sec.Key("uid").Int(); err == nil {
		c.Uid = &v
	}
	if v, err := sec.Key("gid").Int(); err == nil {
		c.Gid = &v
	}

	c.FileMode = parsePerm(sec.Key("file-mode").String())
	c.DirMode = parsePerm(sec.Key("dir-mode").String())

	return
}

// ForHeader calls Loader.ForHeader on the DefaultLoader instance.
func ForHeader() HeaderConfig {
	return DefaultLoader.ForHeader()
}

// S3Config contains settings for archives stored in S3.
type S3Config struct {
	AWSProfile          string
	ExpectedBucketOwner *string
}

// ForS3 returns configuration from the [s3] section.
func (l *Loader) ForS3() (c S3Config) {
	sec, err := l.file().GetSection("s3")
	if err != nil {
		return c
	}

	c.AWSProfile = sec.Key("profile").String()

	if v := sec.Key("expected-bucket-owner").String(); v != "" {
		c.ExpectedBucketOwner = aws.String(v)
	}

	return
}

// ForS3 calls Loader.ForS3 on the DefaultLoader instance.
func ForS3() S3Config {
	return DefaultLoader.ForS3()
}

// parsePerm parses octal permission bits such as "0644"; anything else is 0.
func parsePerm(s string) fs.FileMode {
	v, err := strconv.ParseUint(s, 8, 32)
	if err != nil {
		return 0
	}

	return fs.FileMode(v).Perm()
}
