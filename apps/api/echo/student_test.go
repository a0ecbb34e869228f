package echoapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/trezcool/academia/core/admission"
	"github.com/trezcool/academia/core/student"
	"github.com/trezcool/academia/core/user"
	"github.com/trezcool/academia/tests"
)

func TestStudentAPI_admit(t *testing.T) {
	sch := testutil.CreateSchool(t, schRepo, "Riverside Academy", admission.FormatNoBranch, "-")
	registrar := testutil.CreateUser(
		t, usrRepo, testutil.BoundScope(sch),
		"Rosa Registrar", "rosadesk", "rosa@riverside.test", "Str0ng!Pass",
		[]string{user.RoleRegistrar}, true,
	)
	teacher := testutil.CreateUser(
		t, usrRepo, testutil.BoundScope(sch),
		"Tom Teacher", "tomteach", "tom@riverside.test", "Str0ng!Pass",
		[]string{user.RoleTeacher}, true,
	)
	registrarToken := getToken(t, registrar)
	teacherToken := getToken(t, teacher)

	base := "/v1/schools/" + sch.ID

	t.Run("First admission issues 001", func(t *testing.T) {
		expectAdmitTx(1)
		req, rec := newAuthRequest(http.MethodPost, base+"/students", registrarToken,
			marchallObj(t, map[string]interface{}{
				"name":          "John Mwangi",
				"email":         "john@riverside.test",
				"academic_year": 2025,
			}))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("code = %v; want %v; body %v", rec.Code, http.StatusCreated, rec.Body.String())
		}

		var st student.Student
		if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
			t.Fatalf("unmarshalling student: %v", err)
		}
		if st.AdmissionNo != "ADM-2025-001" {
			t.Errorf("admissionNo = %q; want %q", st.AdmissionNo, "ADM-2025-001")
		}
		if st.SchoolID != sch.ID {
			t.Errorf("schoolID = %q; want %q", st.SchoolID, sch.ID)
		}
	})

	t.Run("Second admission increments", func(t *testing.T) {
		expectAdmitTx(1)
		req, rec := newAuthRequest(http.MethodPost, base+"/students", registrarToken,
			marchallObj(t, map[string]interface{}{"name": "Mary Achieng", "academic_year": 2025}))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("code = %v; want %v; body %v", rec.Code, http.StatusCreated, rec.Body.String())
		}
		var st student.Student
		if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
			t.Fatalf("unmarshalling student: %v", err)
		}
		if st.AdmissionNo != "ADM-2025-002" {
			t.Errorf("admissionNo = %q; want %q", st.AdmissionNo, "ADM-2025-002")
		}
	})

	t.Run("Years keep independent counters", func(t *testing.T) {
		expectAdmitTx(1)
		req, rec := newAuthRequest(http.MethodPost, base+"/students", registrarToken,
			marchallObj(t, map[string]interface{}{"name": "Peter Otieno", "academic_year": 2026}))
		app.ServeHTTP(rec, req)
		var st student.Student
		if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
			t.Fatalf("unmarshalling student: %v", err)
		}
		if st.AdmissionNo != "ADM-2026-001" {
			t.Errorf("admissionNo = %q; want %q", st.AdmissionNo, "ADM-2026-001")
		}
	})

	t.Run("Teacher may not admit", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, base+"/students", teacherToken,
			marchallObj(t, map[string]interface{}{"name": "Nope", "academic_year": 2025}))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		}, rec)
	})

	t.Run("Missing name rejected", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, base+"/students", registrarToken,
			marchallObj(t, map[string]interface{}{"academic_year": 2025}))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("code = %v; want %v", rec.Code, http.StatusBadRequest)
		}
	})
}

func TestStudentAPI_admitBranchFormats(t *testing.T) {
	sch := testutil.CreateSchool(t, schRepo, "Kibo Group of Schools", admission.FormatBranchStart, "-")
	br := testutil.CreateBranch(t, schRepo, sch, "KB", "Kibo Main Campus")
	registrar := testutil.CreateUser(
		t, usrRepo, testutil.BoundScope(sch),
		"Ken Registrar", "kendesk", "ken@kibo.test", "Str0ng!Pass",
		[]string{user.RoleRegistrar}, true,
	)
	token := getToken(t, registrar)
	base := "/v1/schools/" + sch.ID

	t.Run("Branch code lands in the number", func(t *testing.T) {
		expectAdmitTx(1)
		req, rec := newAuthRequest(http.MethodPost, base+"/students", token,
			marchallObj(t, map[string]interface{}{
				"name":          "Grace Wanjiru",
				"branch_code":   "kb", // case-insensitive on input
				"academic_year": 2025,
			}))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("code = %v; want %v; body %v", rec.Code, http.StatusCreated, rec.Body.String())
		}
		var st student.Student
		if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
			t.Fatalf("unmarshalling student: %v", err)
		}
		if st.AdmissionNo != "KB-ADM-2025-001" {
			t.Errorf("admissionNo = %q; want %q", st.AdmissionNo, "KB-ADM-2025-001")
		}
		if st.BranchID.String != br.ID {
			t.Errorf("branchID = %q; want %q", st.BranchID.String, br.ID)
		}
	})

	t.Run("Branch required for this format", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, base+"/students", token,
			marchallObj(t, map[string]interface{}{"name": "No Branch", "academic_year": 2025}))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"branch_code": admission.ErrBranchRequired.Error()}),
		}, rec)
	})

	t.Run("Unknown branch rejected", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, base+"/students", token,
			marchallObj(t, map[string]interface{}{
				"name":          "Ghost Branch",
				"branch_code":   "ZZ",
				"academic_year": 2025,
			}))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("code = %v; want %v; body %v", rec.Code, http.StatusBadRequest, rec.Body.String())
		}
	})
}

func TestStudentAPI_branchIsolation(t *testing.T) {
	sch := testutil.CreateSchool(t, schRepo, "Mlima Group of Schools", admission.FormatBranchStart, "-")
	brKB := testutil.CreateBranch(t, schRepo, sch, "KB", "Kibo Campus")
	testutil.CreateBranch(t, schRepo, sch, "EA", "Eastern Campus")

	registrar := testutil.CreateUser(
		t, usrRepo, testutil.BoundScope(sch),
		"Sia Registrar", "siadesk", "sia@mlima.test", "Str0ng!Pass",
		[]string{user.RoleRegistrar}, true,
	)
	kbRegistrar := testutil.CreateUser(
		t, usrRepo, testutil.BoundScope(sch),
		"Kim Registrar", "kimdesk", "kim@mlima.test", "Str0ng!Pass",
		[]string{user.RoleRegistrar}, true,
	)
	kbRegistrar.BranchID = testutil.NullStr(brKB.ID)
	kbRegistrar, err := usrRepo.UpdateUser(context.Background(), testutil.BoundScope(sch), kbRegistrar, nil)
	if err != nil {
		t.Fatalf("binding registrar to branch: %v", err)
	}

	schoolToken := getToken(t, registrar)
	kbToken := getToken(t, kbRegistrar)
	base := "/v1/schools/" + sch.ID

	// one student per campus, admitted by the school-wide registrar
	admit := func(branchCode string) student.Student {
		t.Helper()
		expectAdmitTx(1)
		req, rec := newAuthRequest(http.MethodPost, base+"/students", schoolToken,
			marchallObj(t, map[string]interface{}{
				"name":          branchCode + " Student",
				"branch_code":   branchCode,
				"academic_year": 2025,
			}))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("admitting fixture student: code = %v; body %v", rec.Code, rec.Body.String())
		}
		var st student.Student
		if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
			t.Fatalf("unmarshalling student: %v", err)
		}
		return st
	}
	stKB := admit("KB")
	stEA := admit("EA")

	tests := []httpTest{
		{
			name:     "Own branch student is visible",
			method:   http.MethodGet,
			path:     base + "/students/" + stKB.ID,
			token:    kbToken,
			wantCode: http.StatusOK,
			wantData: marchallObj(t, stKB),
		},
		{
			name:     "Sibling branch student is invisible",
			method:   http.MethodGet,
			path:     base + "/students/" + stEA.ID,
			token:    kbToken,
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "not found"}),
		},
		{
			name:     "Sibling branch admission number is invisible",
			method:   http.MethodGet,
			path:     base + "/students/by-admission-no/" + stEA.AdmissionNo,
			token:    kbToken,
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "not found"}),
		},
		{
			name:     "Listing stays within the branch",
			method:   http.MethodGet,
			path:     base + "/students",
			token:    kbToken,
			wantCode: http.StatusOK,
			wantData: marchallList(t, stKB),
		},
		{
			name:     "Cannot admit into a sibling branch",
			method:   http.MethodPost,
			path:     base + "/students",
			body:     marchallObj(t, map[string]interface{}{"name": "Wrong Campus", "branch_code": "EA", "academic_year": 2025}),
			token:    kbToken,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "branch scope mismatch"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("Admits into own branch", func(t *testing.T) {
		expectAdmitTx(1)
		req, rec := newAuthRequest(http.MethodPost, base+"/students", kbToken,
			marchallObj(t, map[string]interface{}{"name": "Right Campus", "branch_code": "KB", "academic_year": 2025}))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("code = %v; want %v; body %v", rec.Code, http.StatusCreated, rec.Body.String())
		}
		var st student.Student
		if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
			t.Fatalf("unmarshalling student: %v", err)
		}
		if st.BranchID.String != brKB.ID {
			t.Errorf("branchID = %q; want %q", st.BranchID.String, brKB.ID)
		}
	})

	t.Run("School-wide staff keep seeing every branch", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, base+"/students", schoolToken)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; body %v", rec.Code, rec.Body.String())
		}
		var students []student.Student
		if err := json.Unmarshal(rec.Body.Bytes(), &students); err != nil {
			t.Fatalf("unmarshalling students: %v", err)
		}
		if len(students) != 3 {
			t.Errorf("len(students) = %d; want 3", len(students))
		}
	})
}

func TestStudentAPI_lookupAndDecode(t *testing.T) {
	sch := testutil.CreateSchool(t, schRepo, "Baobab Institute", admission.FormatNoBranch, "-")
	other := testutil.CreateSchool(t, schRepo, "Acacia Institute", admission.FormatNoBranch, "-")
	registrar := testutil.CreateUser(
		t, usrRepo, testutil.BoundScope(sch),
		"Bea Registrar", "beadesk", "bea@baobab.test", "Str0ng!Pass",
		[]string{user.RoleRegistrar}, true,
	)
	otherRegistrar := testutil.CreateUser(
		t, usrRepo, testutil.BoundScope(other),
		"Oba Registrar", "obadesk", "oba@acacia.test", "Str0ng!Pass",
		[]string{user.RoleRegistrar}, true,
	)
	token := getToken(t, registrar)
	otherToken := getToken(t, otherRegistrar)
	base := "/v1/schools/" + sch.ID

	expectAdmitTx(1)
	req, rec := newAuthRequest(http.MethodPost, base+"/students", token,
		marchallObj(t, map[string]interface{}{"name": "Lookup Target", "academic_year": 2025}))
	app.ServeHTTP(rec, req)
	var st student.Student
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("admitting fixture student: %v", err)
	}

	tests := []httpTest{
		{
			name:     "Get by ID",
			method:   http.MethodGet,
			path:     base + "/students/" + st.ID,
			token:    token,
			wantCode: http.StatusOK,
			wantData: marchallObj(t, st),
		},
		{
			name:     "Get by admission number",
			method:   http.MethodGet,
			path:     base + "/students/by-admission-no/" + st.AdmissionNo,
			token:    token,
			wantCode: http.StatusOK,
			wantData: marchallObj(t, st),
		},
		{
			name:     "Unknown ID",
			method:   http.MethodGet,
			path:     base + "/students/deadbeef",
			token:    token,
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "not found"}),
		},
		{
			name:     "Foreign registrar cannot cross into this school",
			method:   http.MethodGet,
			path:     base + "/students/" + st.ID,
			token:    otherToken,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errMismatch),
		},
		{
			name:     "Decode admission number",
			method:   http.MethodPost,
			path:     base + "/admission-numbers/decode",
			body:     marchallObj(t, map[string]string{"admission_no": st.AdmissionNo}),
			token:    token,
			wantCode: http.StatusOK,
			wantData: marchallObj(t, student.AdmissionNo{
				Number:       st.AdmissionNo,
				AcademicYear: 2025,
				Sequence:     1,
			}),
		},
		{
			name:     "Decode rejects malformed input",
			method:   http.MethodPost,
			path:     base + "/admission-numbers/decode",
			body:     marchallObj(t, map[string]string{"admission_no": "BOGUS-2025-001"}),
			token:    token,
			wantCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func TestStudentAPI_sequenceAdmin(t *testing.T) {
	sch := testutil.CreateSchool(t, schRepo, "Savanna High", admission.FormatNoBranch, "-")
	admin := testutil.CreateUser(
		t, usrRepo, testutil.BoundScope(sch),
		"Sam Admin", "samadmin", "sam@savanna.test", "Str0ng!Pass",
		[]string{user.RoleAdminPrincipal}, true,
	)
	registrar := testutil.CreateUser(
		t, usrRepo, testutil.BoundScope(sch),
		"Sue Registrar", "suedesk", "sue@savanna.test", "Str0ng!Pass",
		[]string{user.RoleRegistrar}, true,
	)
	adminToken := getToken(t, admin)
	registrarToken := getToken(t, registrar)
	base := "/v1/schools/" + sch.ID

	t.Run("Current is zero before first issuance", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, base+"/admission-sequence?academic_year=2025", registrarToken)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusOK,
			wantData: marchallObj(t, map[string]int{"academic_year": 2025, "current_value": 0}),
		}, rec)
	})

	t.Run("Reset is admin only", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, base+"/admission-sequence/reset", registrarToken,
			marchallObj(t, map[string]int{"academic_year": 2025, "value": 10}))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		}, rec)
	})

	t.Run("Reset moves the counter", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, base+"/admission-sequence/reset", adminToken,
			marchallObj(t, map[string]int{"academic_year": 2025, "value": 10}))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusOK,
			wantData: marchallObj(t, map[string]int{"academic_year": 2025, "current_value": 10}),
		}, rec)

		// next admission continues from the new value
		expectAdmitTx(1)
		req, rec = newAuthRequest(http.MethodPost, base+"/students", registrarToken,
			marchallObj(t, map[string]interface{}{"name": "Post Reset", "academic_year": 2025}))
		app.ServeHTTP(rec, req)
		var st student.Student
		if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
			t.Fatalf("unmarshalling student: %v", err)
		}
		if st.AdmissionNo != "ADM-2025-011" {
			t.Errorf("admissionNo = %q; want %q", st.AdmissionNo, "ADM-2025-011")
		}
	})

	t.Run("Negative reset rejected", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, base+"/admission-sequence/reset", adminToken,
			marchallObj(t, map[string]int{"academic_year": 2025, "value": -1}))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("code = %v; want %v; body %v", rec.Code, http.StatusBadRequest, rec.Body.String())
		}
	})

	t.Run("Repair raises lagging counters", func(t *testing.T) {
		// knock the counter below the issued maximum, then repair
		req, rec := newAuthRequest(http.MethodPost, base+"/admission-sequence/reset", adminToken,
			marchallObj(t, map[string]int{"academic_year": 2025, "value": 1}))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("reset: code = %v; body %v", rec.Code, rec.Body.String())
		}

		req, rec = newAuthRequest(http.MethodPost, base+"/admission-sequence/repair", adminToken)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusOK,
			wantData: marchallObj(t, map[string]map[string]int{"raised": {"2025": 11}}),
		}, rec)

		req, rec = newAuthRequest(http.MethodGet, base+"/admission-sequence?academic_year=2025", adminToken)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusOK,
			wantData: marchallObj(t, map[string]int{"academic_year": 2025, "current_value": 11}),
		}, rec)
	})

	t.Run("Repair is admin only", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, base+"/admission-sequence/repair", registrarToken)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		}, rec)
	})
}
