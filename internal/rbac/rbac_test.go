package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCheckerDefaultPolicy(t *testing.T) {
	c := NewChecker(nil)
	cases := []struct {
		role, perm string
		want       bool
	}{
		{RoleStudent, PermResponseSave, true},
		{RoleStudent, PermExamSubmit, true},
		{RoleStudent, PermResultViewAll, false},
		{RoleStudent, PermEventsView, false},
		{RoleExaminer, PermResultViewAll, true},
		{RoleExaminer, PermResponseViewAll, true},
		{RoleExaminer, PermResponseSave, true},
		{RoleExaminer, PermEventsView, false},
		{RoleAdmin, PermEventsView, true},
		{"", PermExamView, false},
		{"guest", PermExamView, false},
		{"ROLE_EXAMINER", PermResultViewAll, true},
		{" Student ", PermResponseSave, true},
	}
	for _, tc := range cases {
		if got := c.Has(tc.role, tc.perm); got != tc.want {
			t.Fatalf("Has(%q, %q) = %v, want %v", tc.role, tc.perm, got, tc.want)
		}
	}
}

func serve(h http.Handler, role string) int {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if role != "" {
		req = req.WithContext(WithRole(req.Context(), role))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Code
}

func TestRequire(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	h := Require(PermEventsView)(ok)

	if code := serve(h, RoleAdmin); code != http.StatusOK {
		t.Fatalf("admin: %d", code)
	}
	if code := serve(h, RoleStudent); code != http.StatusForbidden {
		t.Fatalf("student: %d", code)
	}
	if code := serve(h, ""); code != http.StatusForbidden {
		t.Fatalf("no role: %d", code)
	}
}

func TestRequireOwnerOr(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	owner := false
	h := RequireOwnerOr(PermResultViewOwn, PermResultViewAll, func(*http.Request) bool { return owner })(ok)

	if code := serve(h, RoleStudent); code != http.StatusForbidden {
		t.Fatalf("student, not owner: %d", code)
	}
	if code := serve(h, RoleExaminer); code != http.StatusOK {
		t.Fatalf("examiner: %d", code)
	}
	owner = true
	if code := serve(h, RoleStudent); code != http.StatusOK {
		t.Fatalf("student, owner: %d", code)
	}
	if code := serve(h, ""); code != http.StatusForbidden {
		t.Fatalf("owner without role: %d", code)
	}
	if code := serve(h, "guest"); code != http.StatusForbidden {
		t.Fatalf("owner with unknown role: %d", code)
	}

	// a role granted neither -own nor -all is refused even for its own data
	strict := NewChecker(map[string][]string{"auditor": {PermExamView}})
	saved := defaultChecker
	defaultChecker = strict
	defer func() { defaultChecker = saved }()
	if code := serve(h, "auditor"); code != http.StatusForbidden {
		t.Fatalf("owner without own permission: %d", code)
	}
}
