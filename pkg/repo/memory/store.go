// Package memory implements repo.Store with in-memory storage.
package memory

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/treelinehq/canopy/pkg/identity"
	"github.com/treelinehq/canopy/pkg/repo"
	"github.com/treelinehq/canopy/pkg/repo/schema"
)

// nodeData holds the internal representation of one node.
//
// The public repo.Node value is embedded together with the state only the
// store needs: the locally-set ACL, the inheritance flag (mirrored into
// the public value), the lock, the version ledger and the protection
// markers.
type nodeData struct {
	node repo.Node

	// acl is the locally-set permission list. Effective permissions union
	// this with the parent chain unless inheritance is disabled.
	acl []repo.PermissionEntry

	// lock is the current lock; expiry is evaluated lazily on access.
	lock *repo.LockInfo

	// versions is the version ledger, oldest first.
	versions []*repo.VersionRecord

	// assocs are the secondary associations held by this node.
	assocs []repo.Association

	// seq is the global creation counter, the stable tie-break for child
	// ordering.
	seq uint64

	// protected marks nodes whose deletion and relocation are fatally
	// rejected for everyone, administrators included (repository root,
	// "Sites", "Data Dictionary").
	protected bool

	// homeOf names the owning user when this node is a home folder. Home
	// folders reject deletion by anyone but their owner or an
	// administrator.
	homeOf string
}

// tenantState is one tenant's complete tree.
//
// Storage model, one map per relationship:
//
//   - nodes:    active nodes by id (the primary metadata storage)
//   - children: active parent -> (name -> child id) edges
//   - archived: soft-deleted nodes by id; ParentID is retained so subtrees
//     can be restored, but no children edges exist in the live maps
type tenantState struct {
	nodes    map[repo.NodeID]*nodeData
	children map[repo.NodeID]map[string]repo.NodeID
	archived map[repo.NodeID]*nodeData

	rootID       repo.NodeID
	sitesID      repo.NodeID
	dictionaryID repo.NodeID
	homesID      repo.NodeID
}

// MemoryStore implements repo.Store using in-memory storage.
//
// Thread Safety:
// All operations are protected by a single read-write mutex, which is also
// the transactional boundary required by the store contract: permission
// and lock checks run under the same critical section as the mutation they
// gate, mutations become visible atomically, and concurrent content
// updates to the same node serialize.
type MemoryStore struct {
	mu sync.RWMutex

	model     *schema.Model
	directory identity.Directory
	tenants   map[string]*tenantState

	// ephemeralTTL caps the lifetime of EPHEMERAL locks.
	ephemeralTTL time.Duration

	// now is the clock, injectable for expiry tests.
	now func() time.Time

	// seq is the global creation counter.
	seq uint64
}

// Options configures a MemoryStore.
type Options struct {
	// Model is the content model; defaults to schema.Default().
	Model *schema.Model

	// Directory resolves authorities; defaults to an empty in-memory
	// directory (only "admin" recognized as administrator).
	Directory identity.Directory

	// Tenants are the tenant trees to bootstrap. Each gets a root
	// ("Company Home") with "Sites", "Data Dictionary" and "User Homes"
	// containers, plus one home folder per listed user.
	Tenants []TenantSeed

	// EphemeralLockTTL caps EPHEMERAL lock lifetimes. Defaults to one
	// hour.
	EphemeralLockTTL time.Duration

	// Clock overrides the time source (lock expiry tests).
	Clock func() time.Time
}

// TenantSeed describes one tenant to bootstrap.
type TenantSeed struct {
	Name  string
	Users []string
}

// Default names in a bootstrapped tenant tree.
const (
	RootName       = "Company Home"
	SitesName      = "Sites"
	DictionaryName = "Data Dictionary"
	UserHomesName  = "User Homes"
)

// NewMemoryStore creates a store with the given tenants bootstrapped.
func NewMemoryStore(opts Options) *MemoryStore {
	model := opts.Model
	if model == nil {
		model = schema.Default()
	}
	directory := opts.Directory
	if directory == nil {
		directory = identity.NewMemoryDirectory()
	}
	ttl := opts.EphemeralLockTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}

	store := &MemoryStore{
		model:        model,
		directory:    directory,
		tenants:      make(map[string]*tenantState),
		ephemeralTTL: ttl,
		now:          clock,
	}

	for _, seed := range opts.Tenants {
		store.bootstrapTenant(seed)
	}

	return store
}

// bootstrapTenant builds the fixed top-level structure of one tenant.
func (s *MemoryStore) bootstrapTenant(seed TenantSeed) {
	ts := &tenantState{
		nodes:    make(map[repo.NodeID]*nodeData),
		children: make(map[repo.NodeID]map[string]repo.NodeID),
		archived: make(map[repo.NodeID]*nodeData),
	}
	s.tenants[seed.Name] = ts

	now := s.now()

	root := s.newNodeData("", RootName, repo.TypeFolder, "System", now)
	root.protected = true
	// Fixed default grant terminating the inheritance walk: everyone may
	// read the tree unless a descendant cuts inheritance.
	root.acl = []repo.PermissionEntry{
		{Authority: repo.GroupEveryone, Name: "Consumer", Access: repo.AccessAllowed},
	}
	ts.rootID = root.node.ID
	s.insert(ts, root)

	sites := s.newNodeData(root.node.ID, SitesName, repo.TypeSitesRoot, "System", now)
	sites.protected = true
	ts.sitesID = sites.node.ID
	s.insert(ts, sites)

	dictionary := s.newNodeData(root.node.ID, DictionaryName, repo.TypeSystemFolder, "System", now)
	dictionary.protected = true
	ts.dictionaryID = dictionary.node.ID
	s.insert(ts, dictionary)

	homes := s.newNodeData(root.node.ID, UserHomesName, repo.TypeSystemFolder, "System", now)
	homes.protected = true
	ts.homesID = homes.node.ID
	s.insert(ts, homes)

	for _, user := range seed.Users {
		s.addHomeFolder(ts, user, now)
	}
}

// addHomeFolder creates one user's home folder under "User Homes".
//
// Home folders cut permission inheritance: only the owner (full rights by
// ownership) and explicit local grants see inside.
func (s *MemoryStore) addHomeFolder(ts *tenantState, user string, now time.Time) {
	home := s.newNodeData(ts.homesID, user, repo.TypeFolder, user, now)
	home.node.Owner = user
	home.node.InheritPermissions = false
	home.homeOf = user
	s.insert(ts, home)
}

// newNodeData builds a fresh folder/content node record.
func (s *MemoryStore) newNodeData(parent repo.NodeID, name string, nodeType repo.QName, creator string, now time.Time) *nodeData {
	s.seq++
	return &nodeData{
		node: repo.Node{
			ID:                 repo.NodeID(uuid.NewString()),
			Name:               name,
			Type:               nodeType,
			ParentID:           parent,
			Properties:         repo.PropertyMap{},
			Owner:              creator,
			CreatedBy:          creator,
			CreatedAt:          now,
			ModifiedBy:         creator,
			ModifiedAt:         now,
			IsFolder:           s.model.IsFolderType(nodeType),
			IsFile:             s.model.IsFileType(nodeType),
			State:              repo.StateActive,
			InheritPermissions: true,
		},
		seq: s.seq,
	}
}

// insert wires a node record into the active maps.
func (s *MemoryStore) insert(ts *tenantState, nd *nodeData) {
	ts.nodes[nd.node.ID] = nd
	if nd.node.ParentID != "" {
		siblings := ts.children[nd.node.ParentID]
		if siblings == nil {
			siblings = make(map[string]repo.NodeID)
			ts.children[nd.node.ParentID] = siblings
		}
		siblings[nd.node.Name] = nd.node.ID
	}
}

// tenant resolves the operation's tenant state.
func (s *MemoryStore) tenant(opCtx *repo.OperationContext) (*tenantState, error) {
	ts, ok := s.tenants[opCtx.Tenant]
	if !ok {
		return nil, repo.NewErrorAt(repo.KindNotFound, "unknown tenant", opCtx.Tenant)
	}
	return ts, nil
}

// RootID returns a tenant's root node id (used by adapters and tests).
func (s *MemoryStore) RootID(tenant string) (repo.NodeID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ts, ok := s.tenants[tenant]
	if !ok {
		return "", repo.NewErrorAt(repo.KindNotFound, "unknown tenant", tenant)
	}
	return ts.rootID, nil
}

// HomeID returns a user's home folder id within a tenant.
func (s *MemoryStore) HomeID(tenant, user string) (repo.NodeID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ts, ok := s.tenants[tenant]
	if !ok {
		return "", repo.NewErrorAt(repo.KindNotFound, "unknown tenant", tenant)
	}
	id, ok := ts.children[ts.homesID][user]
	if !ok {
		return "", repo.NewErrorAt(repo.KindNotFound, "no home folder", user)
	}
	return id, nil
}

// AddHomeFolder provisions a home folder for a new user.
func (s *MemoryStore) AddHomeFolder(tenant, user string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts, ok := s.tenants[tenant]
	if !ok {
		return repo.NewErrorAt(repo.KindNotFound, "unknown tenant", tenant)
	}
	if _, exists := ts.children[ts.homesID][user]; exists {
		return repo.NewErrorAt(repo.KindConflict, "home folder already exists", user)
	}
	s.addHomeFolder(ts, user, s.now())
	return nil
}

// ReferencedContentRefs returns every content snapshot reference reachable
// from live nodes, archived nodes and version records, across all tenants.
// The garbage collector treats anything else in the content store as
// orphaned.
func (s *MemoryStore) ReferencedContentRefs() map[string]bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	refs := make(map[string]bool)
	collect := func(nd *nodeData) {
		if nd.node.Content != nil {
			refs[nd.node.Content.ContentRef] = true
		}
		for _, record := range nd.versions {
			if record.ContentRef != "" {
				refs[record.ContentRef] = true
			}
		}
	}
	for _, ts := range s.tenants {
		for _, nd := range ts.nodes {
			collect(nd)
		}
		for _, nd := range ts.archived {
			collect(nd)
		}
	}
	return refs
}
