package party

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rolePtr(r Role) *Role { return &r }

func TestParty_Can(t *testing.T) {
	tests := []struct {
		name    string
		role    *Role
		cap     Capability
		wantErr bool
	}{
		{name: "provider books own calendar", role: rolePtr(RoleProvider), cap: CapBookOwnCalendar},
		{name: "provider cannot book any calendar", role: rolePtr(RoleProvider), cap: CapBookAnyCalendar, wantErr: true},
		{name: "client lists own", role: rolePtr(RoleClient), cap: CapListOwn},
		{name: "client cannot cancel", role: rolePtr(RoleClient), cap: CapCancelOwn, wantErr: true},
		{name: "admin cancels any", role: rolePtr(RoleAdmin), cap: CapCancelAny},
		{name: "admin has no own calendar", role: rolePtr(RoleAdmin), cap: CapListOwn, wantErr: true},
		{name: "no role", role: nil, cap: CapListOwn, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Party{ID: uuid.New(), Role: tt.role}
			err := p.Can(tt.cap)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrRoleMismatch)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole(" Provider ")
	require.NoError(t, err)
	assert.Equal(t, RoleProvider, r)

	_, err = ParseRole("doctor")
	assert.ErrorIs(t, err, ErrInvalidRole)
}

func TestValidateNationalID(t *testing.T) {
	assert.NoError(t, ValidateNationalID("90010112345"))
	assert.ErrorIs(t, ValidateNationalID("9001011234"), ErrInvalidNationalID)
	assert.ErrorIs(t, ValidateNationalID("9001011234a"), ErrInvalidNationalID)
	assert.ErrorIs(t, ValidateNationalID(""), ErrInvalidNationalID)
}

type fakeDirectory struct {
	byLogin      map[string]*Party
	byNationalID map[string]*Party
}

func (f *fakeDirectory) GetByID(ctx context.Context, id uuid.UUID) (*Party, error) {
	panic("GetByID not configured")
}

func (f *fakeDirectory) GetByLogin(ctx context.Context, login string) (*Party, error) {
	if p, ok := f.byLogin[login]; ok {
		return p, nil
	}
	return nil, ErrNotFound
}

func (f *fakeDirectory) GetByNationalID(ctx context.Context, nationalID string) (*Party, error) {
	if p, ok := f.byNationalID[nationalID]; ok {
		return p, nil
	}
	return nil, ErrNotFound
}

func TestResolve(t *testing.T) {
	byLogin := &Party{ID: uuid.New(), Login: "dr.house"}
	byNID := &Party{ID: uuid.New(), Login: "jdoe"}
	dir := &fakeDirectory{
		byLogin:      map[string]*Party{"dr.house": byLogin},
		byNationalID: map[string]*Party{"90010112345": byNID},
	}
	ctx := context.Background()

	got, err := Resolve(ctx, dir, "dr.house", "90010112345")
	require.NoError(t, err)
	assert.Equal(t, byLogin.ID, got.ID, "login takes precedence")

	got, err = Resolve(ctx, dir, "", " 90010112345 ")
	require.NoError(t, err)
	assert.Equal(t, byNID.ID, got.ID)

	_, err = Resolve(ctx, dir, "", "123")
	assert.ErrorIs(t, err, ErrInvalidNationalID)

	_, err = Resolve(ctx, dir, "", "")
	assert.ErrorIs(t, err, ErrLookupKeyRequired)

	_, err = Resolve(ctx, dir, "nobody", "")
	assert.True(t, errors.Is(err, ErrNotFound))
}

// partyRow fills Scan destinations in column order.
type partyRow struct {
	id   uuid.UUID
	role *string
	err  error
}

func (r partyRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*uuid.UUID) = r.id
	*dest[1].(*string) = "jane.doe"
	*dest[2].(*string) = "Jane"
	*dest[3].(*string) = "Doe"
	*dest[4].(**string) = nil
	*dest[5].(**string) = r.role
	*dest[6].(*time.Time) = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return nil
}

func strPtr(s string) *string { return &s }

func TestScanParty_Role(t *testing.T) {
	id := uuid.New()

	p, err := scanParty(partyRow{id: id, role: strPtr(" Provider ")})
	require.NoError(t, err)
	require.NotNil(t, p.Role)
	assert.Equal(t, RoleProvider, *p.Role)
	assert.Equal(t, id, p.ID)

	p, err = scanParty(partyRow{id: id})
	require.NoError(t, err)
	assert.Nil(t, p.Role)

	_, err = scanParty(partyRow{id: id, role: strPtr("superuser")})
	assert.ErrorIs(t, err, ErrInvalidRole)
	assert.Contains(t, err.Error(), id.String())

	_, err = scanParty(partyRow{err: pgx.ErrNoRows})
	assert.ErrorIs(t, err, ErrNotFound)
}
