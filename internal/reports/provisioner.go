package reports

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// AccessPolicy is the access granted on the report bucket. Actions use the
// S3 vocabulary; backends translate them to their own model.
type AccessPolicy struct {
	// Principal is the grantee. "*" is the anonymous principal.
	Principal string

	// BucketActions apply to the bucket itself.
	BucketActions []string

	// ObjectActions apply to every object in the bucket.
	ObjectActions []string
}

// DefaultAccessPolicy grants the operations the report workflow relies on
// to the anonymous principal.
//
// TODO: scope this to per-caller credentials once the download path is
// authenticated; anonymous write and delete are wider than the workflow needs.
func DefaultAccessPolicy() AccessPolicy {
	return AccessPolicy{
		Principal: "*",
		BucketActions: []string{
			"s3:ListBucket",
			"s3:ListBucketMultipartUploads",
			"s3:GetBucketLocation",
		},
		ObjectActions: []string{
			"s3:AbortMultipartUpload",
			"s3:DeleteObject",
			"s3:GetObject",
			"s3:ListMultipartUploadParts",
			"s3:PutObject",
		},
	}
}

// Provisioner creates the report bucket and its policy on first use.
// It is safe to call from many goroutines at once: concurrent creations race
// and the losing side sees an already-existing bucket, which the store
// reports as success.
type Provisioner struct {
	store  ArtifactStore
	policy AccessPolicy
	log    zerolog.Logger
}

// NewProvisioner creates a Provisioner applying policy to new buckets.
func NewProvisioner(store ArtifactStore, policy AccessPolicy, log zerolog.Logger) *Provisioner {
	return &Provisioner{
		store:  store,
		policy: policy,
		log:    log,
	}
}

// EnsureProvisioned makes sure the bucket exists. When it already does this
// costs a single existence check, so a policy that failed to apply after the
// bucket was created is not retried here; Provision repairs it.
func (p *Provisioner) EnsureProvisioned(ctx context.Context) error {
	exists, err := p.store.BucketExists(ctx)
	if err != nil {
		return fmt.Errorf("EnsureProvisioned: checking bucket: %w", err)
	}
	if exists {
		return nil
	}

	p.log.Info().Msg("Report bucket missing, creating it")

	if err := p.store.CreateBucket(ctx); err != nil {
		return fmt.Errorf("EnsureProvisioned: creating bucket: %w", err)
	}
	if err := p.store.SetPolicy(ctx, p.policy); err != nil {
		p.log.Error().Err(err).Msg("Report bucket created without its access policy, run `reports provision` to apply it")
		return fmt.Errorf("EnsureProvisioned: bucket created but policy not applied, run `reports provision` to repair: %w", err)
	}

	p.log.Info().Msg("Report bucket created")
	return nil
}

// Provision creates the bucket when missing and applies the policy
// unconditionally. It repairs a bucket whose policy never got applied.
func (p *Provisioner) Provision(ctx context.Context) error {
	if err := p.EnsureProvisioned(ctx); err != nil {
		return fmt.Errorf("Provision: %w", err)
	}
	if err := p.store.SetPolicy(ctx, p.policy); err != nil {
		return fmt.Errorf("Provision: applying policy: %w", err)
	}

	p.log.Info().Msg("Report bucket policy applied")
	return nil
}
