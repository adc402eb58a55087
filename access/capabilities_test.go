package access_test

import (
	"testing"

	"github.com/medflow/medflow-auth/access"
	"github.com/medflow/medflow-auth/users"
	"github.com/stretchr/testify/require"
)

func TestDefaultTableIsTotalOverRoles(t *testing.T) {
	table := access.DefaultTable()
	for _, role := range users.Roles() {
		require.NotEmpty(t, table.ModulesFor(role), "role %s has no capability row", role)
	}
}

func TestPatientCapabilities(t *testing.T) {
	table := access.DefaultTable()

	allowed := []access.Module{
		access.ModuleDashboard,
		access.ModuleAppointments,
		access.ModuleMessaging,
		access.ModuleTelemedicine,
		access.ModulePortal,
	}
	for _, m := range allowed {
		require.True(t, table.Allowed(users.RolePatient, m), "patient should access %s", m)
	}

	denied := []access.Module{
		access.ModuleBilling,
		access.ModulePatients,
		access.ModuleNotes,
		access.ModulePrescription,
		access.ModuleFiles,
		access.ModuleIntake,
		access.ModuleOCR,
	}
	for _, m := range denied {
		require.False(t, table.Allowed(users.RolePatient, m), "patient should not access %s", m)
	}
}

func TestPrescriptionIsProviderOnly(t *testing.T) {
	table := access.DefaultTable()
	require.True(t, table.Allowed(users.RoleProvider, access.ModulePrescription))
	require.False(t, table.Allowed(users.RoleStaff, access.ModulePrescription))
	require.False(t, table.Allowed(users.RolePatient, access.ModulePrescription))
	require.False(t, table.Allowed(users.RoleAdmin, access.ModulePrescription))
}

func TestUnknownRoleFailsClosed(t *testing.T) {
	table := access.DefaultTable()
	for _, m := range access.Modules() {
		require.False(t, table.Allowed(users.Role("superuser"), m))
		require.False(t, table.Allowed(users.Role(""), m))
	}
	require.Nil(t, table.ModulesFor(users.Role("superuser")))
}

func TestAllowedIsDeterministic(t *testing.T) {
	table := access.DefaultTable()
	for i := 0; i < 3; i++ {
		require.True(t, table.Allowed(users.RolePatient, access.ModuleAppointments))
		require.False(t, table.Allowed(users.RolePatient, access.ModuleBilling))
	}
}

func TestModulesForIsSorted(t *testing.T) {
	table := access.DefaultTable()
	modules := table.ModulesFor(users.RoleProvider)
	for i := 1; i < len(modules); i++ {
		require.Less(t, modules[i-1], modules[i])
	}
}
