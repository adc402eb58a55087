// Package access holds the static role -> capability mapping used to gate
// application modules. The table is loaded at process start and immutable at
// runtime; changing it requires a redeploy.
package access

import (
	"sort"

	"github.com/medflow/medflow-auth/users"
)

// Module identifies one application module of the EMR product.
type Module string

const (
	ModuleDashboard     Module = "dashboard"
	ModuleAppointments  Module = "appointments"
	ModulePatients      Module = "patients"
	ModuleNotes         Module = "notes"
	ModulePrescription  Module = "prescription"
	ModuleBilling       Module = "billing"
	ModuleMessaging     Module = "messaging"
	ModuleFiles         Module = "files"
	ModuleTelemedicine  Module = "telemedicine"
	ModuleIntake        Module = "intake"
	ModulePortal        Module = "portal"
	ModuleOCR           Module = "ocr"
)

// Modules lists every defined module.
func Modules() []Module {
	return []Module{
		ModuleDashboard, ModuleAppointments, ModulePatients, ModuleNotes,
		ModulePrescription, ModuleBilling, ModuleMessaging, ModuleFiles,
		ModuleTelemedicine, ModuleIntake, ModulePortal, ModuleOCR,
	}
}

// Table maps each role to the set of modules it may access. An unknown role
// maps to the empty set: lookups fail closed, never error.
type Table map[users.Role]map[Module]struct{}

// NewTable builds a Table from role -> module lists.
func NewTable(capabilities map[users.Role][]Module) Table {
	t := make(Table, len(capabilities))
	for role, modules := range capabilities {
		set := make(map[Module]struct{}, len(modules))
		for _, m := range modules {
			set[m] = struct{}{}
		}
		t[role] = set
	}
	return t
}

// DefaultTable is the capability table shipped with the product, matching
// the navigation the UI renders per role.
func DefaultTable() Table {
	return NewTable(map[users.Role][]Module{
		users.RoleProvider: {
			ModuleDashboard, ModuleAppointments, ModulePatients, ModuleNotes,
			ModulePrescription, ModuleBilling, ModuleMessaging, ModuleFiles,
			ModuleTelemedicine, ModuleOCR,
		},
		users.RoleStaff: {
			ModuleDashboard, ModuleAppointments, ModulePatients, ModuleNotes,
			ModuleBilling, ModuleMessaging, ModuleFiles, ModuleIntake,
			ModuleOCR,
		},
		users.RolePatient: {
			ModuleDashboard, ModuleAppointments, ModuleMessaging,
			ModuleTelemedicine, ModulePortal,
		},
		users.RoleAdmin: {
			ModuleDashboard, ModuleAppointments, ModulePatients, ModuleBilling,
			ModuleMessaging, ModuleFiles, ModuleIntake, ModuleOCR,
		},
	})
}

// Allowed reports whether the role may access the module. Deterministic for
// the same (role, module) pair; an unknown role is allowed nothing.
func (t Table) Allowed(role users.Role, module Module) bool {
	set, ok := t[role]
	if !ok {
		return false
	}
	_, ok = set[module]
	return ok
}

// ModulesFor returns the role's allowed modules in stable order, for
// building navigation.
func (t Table) ModulesFor(role users.Role) []Module {
	set, ok := t[role]
	if !ok {
		return nil
	}
	modules := make([]Module, 0, len(set))
	for m := range set {
		modules = append(modules, m)
	}
	sort.Slice(modules, func(i, j int) bool { return modules[i] < modules[j] })
	return modules
}
