package deletion

import (
	"context"

	accountmodels "erasure/internal/account/models"
	id "erasure/pkg/domain"
)

// Deleter removes one kind of account-owned data and reports how many rows went.
type Deleter interface {
	Resource() accountmodels.Resource
	Delete(ctx context.Context, accountID id.AccountID) (int64, error)
}

type resourceDeleter struct {
	resource accountmodels.Resource
	store    OwnedDataStore
}

func (d resourceDeleter) Resource() accountmodels.Resource { return d.resource }

func (d resourceDeleter) Delete(ctx context.Context, accountID id.AccountID) (int64, error) {
	return d.store.DeleteOwned(ctx, d.resource, accountID)
}

// Manifest is the ordered list of deleters a purge runs. Children come before
// their parents. A new account-owned table needs an entry here.
type Manifest []Deleter

// NewManifest builds the manifest for every owned resource in purge order.
func NewManifest(store OwnedDataStore) Manifest {
	m := make(Manifest, 0, len(accountmodels.PurgeOrder))
	for _, resource := range accountmodels.PurgeOrder {
		m = append(m, resourceDeleter{resource: resource, store: store})
	}
	return m
}

// Resources lists the manifest's resources in run order.
func (m Manifest) Resources() []accountmodels.Resource {
	out := make([]accountmodels.Resource, len(m))
	for i, d := range m {
		out[i] = d.Resource()
	}
	return out
}
