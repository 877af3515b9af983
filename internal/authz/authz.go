// Package authz centralizes the role/ownership decision applied before every
// mutating operation. Handlers and services never inspect roles directly.
package authz

import "strings"

// Decision is the outcome of an authorization check.
type Decision int

const (
	// Permitted allows the operation to proceed.
	Permitted Decision = iota
	// DeniedUnauthenticated rejects a request carrying no identity.
	DeniedUnauthenticated
	// DeniedUnauthorized rejects an authenticated caller with insufficient role or ownership.
	DeniedUnauthorized
)

// Operation enumerates the guarded operations.
type Operation int

const (
	OperationCreateRecommendation Operation = iota
	OperationEditRecommendation
	OperationDeleteRecommendation
	OperationMarkStaffPick
	OperationUnmarkStaffPick
	OperationListUsers
	OperationUpdateUserRole
)

// adminOnly operations never fall back to ownership, including when the
// target is the caller's own record.
func (op Operation) adminOnly() bool {
	switch op {
	case OperationMarkStaffPick, OperationUnmarkStaffPick, OperationListUsers, OperationUpdateUserRole:
		return true
	}
	return false
}

func (op Operation) allowsOwner() bool {
	return op == OperationEditRecommendation || op == OperationDeleteRecommendation
}

// Caller is the guard's view of the requesting identity: the provider subject
// id, whether a local user record exists for it, and whether that record
// holds the admin role.
type Caller struct {
	Subject string
	Found   bool
	Admin   bool
}

// Authorize evaluates the guard rules in order and returns a decision. It is
// a pure function over the supplied state; callers resolve the user record
// and target ownership before invoking it.
func Authorize(caller Caller, operation Operation, ownerSubject string) Decision {
	if strings.TrimSpace(caller.Subject) == "" {
		return DeniedUnauthenticated
	}
	if !caller.Found {
		return DeniedUnauthorized
	}
	if caller.Admin {
		return Permitted
	}
	if operation.allowsOwner() {
		if caller.Subject == ownerSubject {
			return Permitted
		}
		return DeniedUnauthorized
	}
	if operation.adminOnly() {
		return DeniedUnauthorized
	}
	return Permitted
}
