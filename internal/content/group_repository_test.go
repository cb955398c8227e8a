package content

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
)

func setupGroupRepository(t *testing.T) *GormGroupRepository {
	t.Helper()

	_, gormDB := setupContentDB(t)
	repo, err := NewGroupRepository(gormDB, silentLogger())
	if err != nil {
		t.Fatalf("NewGroupRepository returned error: %v", err)
	}

	return repo
}

func TestGroupCreateRejectsBlankName(t *testing.T) {
	t.Parallel()

	repo := setupGroupRepository(t)

	if _, err := repo.Create(context.Background(), "   "); err == nil {
		t.Fatalf("expected error for blank group name")
	}
}

func TestGroupCreateRejectsDuplicateName(t *testing.T) {
	t.Parallel()

	repo := setupGroupRepository(t)
	ctx := context.Background()

	if _, err := repo.Create(ctx, "writers"); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if _, err := repo.Create(ctx, "writers"); err == nil {
		t.Fatalf("expected unique name violation")
	}
}

func TestGroupUpdateAssignsManagedPage(t *testing.T) {
	t.Parallel()

	repo := setupGroupRepository(t)
	ctx := context.Background()

	group, err := repo.Create(ctx, "writers")
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	managed := "team"
	updated, err := repo.Update(ctx, group.ID, "editors", &managed)
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if updated.Name != "editors" {
		t.Fatalf("expected renamed group, got %q", updated.Name)
	}
	if updated.ManagedPageExternalID == nil || *updated.ManagedPageExternalID != managed {
		t.Fatalf("expected managed page assigned, got %v", updated.ManagedPageExternalID)
	}

	cleared, err := repo.Update(ctx, group.ID, "editors", nil)
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if cleared.ManagedPageExternalID != nil {
		t.Fatalf("expected managed page cleared, got %v", cleared.ManagedPageExternalID)
	}

	if _, err := repo.Update(ctx, 9999, "ghost", nil); !eris.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown group, got %v", err)
	}
}

func TestGroupDeleteRemovesMemberships(t *testing.T) {
	t.Parallel()

	repo := setupGroupRepository(t)
	ctx := context.Background()

	group, err := repo.Create(ctx, "writers")
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if err := repo.AddMember(ctx, group.ID, 1, RoleAdmin); err != nil {
		t.Fatalf("AddMember returned error: %v", err)
	}

	if err := repo.Delete(ctx, group.ID); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}

	if _, err := repo.GetByID(ctx, group.ID); !eris.Is(err, ErrNotFound) {
		t.Fatalf("expected group gone, got %v", err)
	}
	memberships, err := repo.MembershipsForUser(ctx, 1)
	if err != nil {
		t.Fatalf("MembershipsForUser returned error: %v", err)
	}
	if len(memberships) != 0 {
		t.Fatalf("expected memberships removed with the group, got %d", len(memberships))
	}
}

func TestGroupMembershipRoundTrip(t *testing.T) {
	t.Parallel()

	repo := setupGroupRepository(t)
	ctx := context.Background()

	group, err := repo.Create(ctx, "writers")
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if err := repo.AddMember(ctx, group.ID, 1, ""); err != nil {
		t.Fatalf("AddMember returned error: %v", err)
	}

	memberships, err := repo.MembershipsForUser(ctx, 1)
	if err != nil {
		t.Fatalf("MembershipsForUser returned error: %v", err)
	}
	if len(memberships) != 1 || memberships[0].Role != RoleMember {
		t.Fatalf("expected defaulted MEMBER role, got %#v", memberships)
	}

	if err := repo.UpdateMemberRole(ctx, group.ID, 1, RoleAdmin); err != nil {
		t.Fatalf("UpdateMemberRole returned error: %v", err)
	}
	if err := repo.UpdateMemberRole(ctx, group.ID, 99, RoleAdmin); !eris.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown membership, got %v", err)
	}

	if err := repo.RemoveMember(ctx, group.ID, 1); err != nil {
		t.Fatalf("RemoveMember returned error: %v", err)
	}
	memberships, err = repo.MembershipsForUser(ctx, 1)
	if err != nil {
		t.Fatalf("MembershipsForUser returned error: %v", err)
	}
	if len(memberships) != 0 {
		t.Fatalf("expected membership removed, got %d", len(memberships))
	}
}

func TestGroupsManagingAndAdminMemberIDs(t *testing.T) {
	t.Parallel()

	repo := setupGroupRepository(t)
	ctx := context.Background()

	team := "team"
	other := "other"

	writers, err := repo.Create(ctx, "writers")
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if _, err := repo.Update(ctx, writers.ID, "writers", &team); err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	reviewers, err := repo.Create(ctx, "reviewers")
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if _, err := repo.Update(ctx, reviewers.ID, "reviewers", &other); err != nil {
		t.Fatalf("Update returned error: %v", err)
	}

	if err := repo.AddMember(ctx, writers.ID, 1, RoleAdmin); err != nil {
		t.Fatalf("AddMember returned error: %v", err)
	}
	if err := repo.AddMember(ctx, writers.ID, 2, RoleMember); err != nil {
		t.Fatalf("AddMember returned error: %v", err)
	}

	managing, err := repo.GroupsManaging(ctx, []string{team})
	if err != nil {
		t.Fatalf("GroupsManaging returned error: %v", err)
	}
	if len(managing) != 1 || managing[0].ID != writers.ID {
		t.Fatalf("expected only the writers group, got %#v", managing)
	}

	adminIDs, err := repo.AdminMemberIDs(ctx, []uint{writers.ID})
	if err != nil {
		t.Fatalf("AdminMemberIDs returned error: %v", err)
	}
	if len(adminIDs) != 1 || adminIDs[0] != 1 {
		t.Fatalf("expected only the ADMIN member, got %v", adminIDs)
	}

	managed, err := repo.AdminManagedGroups(ctx, 1)
	if err != nil {
		t.Fatalf("AdminManagedGroups returned error: %v", err)
	}
	if len(managed) != 1 || managed[0].ID != writers.ID {
		t.Fatalf("expected writers for user 1, got %#v", managed)
	}

	none, err := repo.AdminManagedGroups(ctx, 2)
	if err != nil {
		t.Fatalf("AdminManagedGroups returned error: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("MEMBER role must not yield managed groups, got %#v", none)
	}
}
