package validation

import (
	"fmt"
	"net"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	// ArtifactNameRegex matches export file names such as recorded.webm or
	// capture-20240309-140507.png.
	ArtifactNameRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*\.[a-z0-9]+$`)

	// BucketNameRegex follows the S3 bucket naming rules.
	BucketNameRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)

	prefixSegmentRegex = regexp.MustCompile(`^[a-zA-Z0-9!_.*'()-]+$`)
)

// ValidateArtifactName validates a file name handed to a download sink
func ValidateArtifactName(name string) error {
	if name == "" {
		return fmt.Errorf("artifact name is required")
	}
	if len(name) > 255 {
		return fmt.Errorf("artifact name is too long (max 255 characters)")
	}
	if strings.Contains(name, "..") || !ArtifactNameRegex.MatchString(name) {
		return fmt.Errorf("invalid artifact name %q", name)
	}
	return nil
}

// ValidateBucketName validates an S3 bucket name
func ValidateBucketName(bucket string) error {
	if bucket == "" {
		return fmt.Errorf("bucket name is required")
	}
	if !BucketNameRegex.MatchString(bucket) {
		return fmt.Errorf("invalid bucket name %q (3-63 lowercase letters, digits, dots, dashes)", bucket)
	}
	if strings.Contains(bucket, "..") {
		return fmt.Errorf("invalid bucket name %q (consecutive dots)", bucket)
	}
	if net.ParseIP(bucket) != nil {
		return fmt.Errorf("bucket name must not be an IP address")
	}
	return nil
}

// ValidateObjectPrefix validates a key prefix; an empty prefix is allowed.
func ValidateObjectPrefix(prefix string) error {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return nil
	}
	if !utf8.ValidString(prefix) || len(prefix) > 512 {
		return fmt.Errorf("invalid object prefix")
	}
	for _, seg := range strings.Split(prefix, "/") {
		if seg == "" || seg == "." || seg == ".." || !prefixSegmentRegex.MatchString(seg) {
			return fmt.Errorf("invalid object prefix segment %q", seg)
		}
	}
	return nil
}

// ValidateChannel validates a pub/sub channel name
func ValidateChannel(channel string) error {
	if strings.TrimSpace(channel) == "" {
		return fmt.Errorf("channel is required")
	}
	if strings.ContainsAny(channel, " \t\r\n") {
		return fmt.Errorf("channel must not contain whitespace")
	}
	if len(channel) > 128 {
		return fmt.Errorf("channel is too long (max 128 characters)")
	}
	return nil
}

// ValidateNonEmptyString validates that string is not empty after trimming
func ValidateNonEmptyString(s, fieldName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%s is required", fieldName)
	}
	return nil
}
