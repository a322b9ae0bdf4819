// Package s3 contains AWS::S3 resource types.
package s3

// Bucket is an AWS::S3::Bucket.
type Bucket struct {
	BucketName any `json:"BucketName,omitempty"`
}

func (Bucket) ResourceType() string { return "AWS::S3::Bucket" }

const (
	AttrArn        = "Arn"
	AttrDomainName = "DomainName"
)
