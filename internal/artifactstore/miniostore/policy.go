package miniostore

import (
	"encoding/json"
	"fmt"

	"github.com/dvloznov/fraud-reports/internal/reports"
)

const policyVersion = "2012-10-17"

type policyDocument struct {
	Version   string            `json:"Version"`
	Statement []policyStatement `json:"Statement"`
}

type policyStatement struct {
	Effect    string          `json:"Effect"`
	Principal policyPrincipal `json:"Principal"`
	Action    []string        `json:"Action"`
	Resource  []string        `json:"Resource"`
}

type policyPrincipal struct {
	AWS []string `json:"AWS"`
}

// RenderPolicy renders policy as an S3 bucket policy document for bucket.
// Bucket actions target the bucket ARN, object actions every key under it.
func RenderPolicy(bucket string, policy reports.AccessPolicy) (string, error) {
	principal := policyPrincipal{AWS: []string{policy.Principal}}
	bucketARN := "arn:aws:s3:::" + bucket

	doc := policyDocument{Version: policyVersion}
	if len(policy.BucketActions) > 0 {
		doc.Statement = append(doc.Statement, policyStatement{
			Effect:    "Allow",
			Principal: principal,
			Action:    policy.BucketActions,
			Resource:  []string{bucketARN},
		})
	}
	if len(policy.ObjectActions) > 0 {
		doc.Statement = append(doc.Statement, policyStatement{
			Effect:    "Allow",
			Principal: principal,
			Action:    policy.ObjectActions,
			Resource:  []string{bucketARN + "/*"},
		})
	}

	out, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("RenderPolicy: encoding policy: %w", err)
	}
	return string(out), nil
}
