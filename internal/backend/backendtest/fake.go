// Package backendtest provides an in-memory stand-in for the generation
// backend, serving the /v1 surface the dashboard consumes. Tests drive task
// completion explicitly; nothing ever finishes on its own.
package backendtest

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"genstudio-dashboard/internal/model"
)

const sessionCookie = "backend_session"

type Fake struct {
	mu           sync.Mutex
	users        map[string]string
	uids         map[string]int64
	projects     []model.Project
	tasks        map[int64][]model.Task
	uploads      []string
	files        map[string][]byte
	nextID       int64
	csrf         string
	tokenFetches int

	srv *httptest.Server
}

func New() *Fake {
	gin.SetMode(gin.TestMode)
	f := &Fake{
		users: make(map[string]string),
		uids:  make(map[string]int64),
		tasks: make(map[int64][]model.Task),
		files: make(map[string][]byte),
	}

	r := gin.New()
	r.GET("/v1/csrf-token", f.csrfToken)
	r.POST("/v1/user/login", f.login)
	r.POST("/v1/user/registry", f.register)
	r.GET("/v1/user/info", f.userInfo)
	r.GET("/v1/project", f.listProjects)
	r.POST("/v1/project", f.createProject)
	r.GET("/v1/project/:id", f.projectTasks)
	r.DELETE("/v1/project/:id", f.deleteProject)
	r.POST("/v1/generate/image", f.generateImage)
	r.POST("/v1/generate/video", f.generateVideo)
	r.POST("/v1/upload", f.upload)
	r.GET("/v1/upload", f.listUploads)
	r.GET("/v1/file", f.fetchFile)

	f.srv = httptest.NewServer(r)
	return f
}

func (f *Fake) URL() string { return f.srv.URL }
func (f *Fake) Close()      { f.srv.Close() }

// TokenFetches reports how many times the csrf-token endpoint was hit.
func (f *Fake) TokenFetches() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tokenFetches
}

func (f *Fake) AddUser(username, password string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[username] = password
	if _, ok := f.uids[username]; !ok {
		f.uids[username] = int64(len(f.uids) + 1)
	}
}

// SeedProject creates a project directly, bypassing the HTTP surface.
func (f *Fake) SeedProject(title string) model.Project {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	p := model.Project{ID: f.nextID, Title: title, CreatedAt: time.Now().Unix()}
	f.projects = append(f.projects, p)
	return p
}

// SeedFile registers bytes behind an opaque filepath for the file endpoint.
func (f *Fake) SeedFile(filepath string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[filepath] = data
}

// Tasks returns a copy of the project's task list.
func (f *Fake) Tasks(projectID int64) []model.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Task(nil), f.tasks[projectID]...)
}

// CompleteTask flips a running task to succeeded with the given result path.
func (f *Fake) CompleteTask(projectID, taskID int64, resultPath string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, t := range f.tasks[projectID] {
		if t.ID == taskID {
			now := time.Now().Unix()
			t.Status = model.TaskSucceeded
			t.ResultFilepath = resultPath
			t.FinishedAt = &now
			f.tasks[projectID][i] = t
		}
	}
}

// FailTask flips a running task to failed with the given reason.
func (f *Fake) FailTask(projectID, taskID int64, reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, t := range f.tasks[projectID] {
		if t.ID == taskID {
			now := time.Now().Unix()
			t.Status = model.TaskFailed
			t.FailureReason = &reason
			t.FinishedAt = &now
			f.tasks[projectID][i] = t
		}
	}
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"code": model.CodeOK, "data": data})
}

func fail(c *gin.Context, code int, message string) {
	c.JSON(http.StatusOK, gin.H{"code": code, "data": message})
}

func (f *Fake) csrfToken(c *gin.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokenFetches++
	if f.csrf == "" {
		f.csrf = uuid.NewString()
	}
	c.JSON(http.StatusOK, gin.H{"code": model.CodeOK, "data": f.csrf})
}

// checkCSRF enforces the token on mutating endpoints. Failures are
// application-level: HTTP 200 with a non-200 envelope code.
func (f *Fake) checkCSRF(c *gin.Context) bool {
	f.mu.Lock()
	expected := f.csrf
	f.mu.Unlock()
	if expected == "" || c.GetHeader("X-CSRF-Token") != expected {
		fail(c, 419, "csrf token mismatch")
		return false
	}
	return true
}

func (f *Fake) login(c *gin.Context) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, 400, "invalid request")
		return
	}

	f.mu.Lock()
	password, exists := f.users[body.Username]
	f.mu.Unlock()
	if !exists || password != body.Password {
		fail(c, 401, "invalid username or password")
		return
	}

	c.SetCookie(sessionCookie, body.Username, 3600, "/", "", false, true)
	ok(c, "login ok")
}

func (f *Fake) register(c *gin.Context) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, 400, "invalid request")
		return
	}

	f.mu.Lock()
	_, exists := f.users[body.Username]
	f.mu.Unlock()
	if exists {
		fail(c, 409, "username already taken")
		return
	}
	f.AddUser(body.Username, body.Password)
	ok(c, "registered")
}

func (f *Fake) currentUser(c *gin.Context) (string, bool) {
	username, err := c.Cookie(sessionCookie)
	if err != nil || username == "" {
		return "", false
	}
	f.mu.Lock()
	_, exists := f.users[username]
	f.mu.Unlock()
	return username, exists
}

func (f *Fake) userInfo(c *gin.Context) {
	username, authed := f.currentUser(c)
	if !authed {
		fail(c, 401, "not logged in")
		return
	}
	f.mu.Lock()
	uid := f.uids[username]
	f.mu.Unlock()
	ok(c, model.User{UID: uid, Username: username, Point: 100, CreatedAt: time.Now().Unix()})
}

func (f *Fake) listProjects(c *gin.Context) {
	f.mu.Lock()
	projects := append([]model.Project(nil), f.projects...)
	f.mu.Unlock()
	ok(c, gin.H{"projects": projects})
}

func (f *Fake) createProject(c *gin.Context) {
	if !f.checkCSRF(c) {
		return
	}
	var body struct {
		Title string `json:"title"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Title == "" {
		fail(c, 400, "title is required")
		return
	}
	ok(c, f.SeedProject(body.Title))
}

func (f *Fake) projectID(c *gin.Context) (int64, bool) {
	var id int64
	for _, r := range c.Param("id") {
		if r < '0' || r > '9' {
			fail(c, 400, "invalid project id")
			return 0, false
		}
		id = id*10 + int64(r-'0')
	}
	return id, true
}

func (f *Fake) projectTasks(c *gin.Context) {
	id, valid := f.projectID(c)
	if !valid {
		return
	}
	ok(c, gin.H{"tasks": f.Tasks(id)})
}

func (f *Fake) deleteProject(c *gin.Context) {
	if !f.checkCSRF(c) {
		return
	}
	id, valid := f.projectID(c)
	if !valid {
		return
	}

	f.mu.Lock()
	kept := f.projects[:0]
	for _, p := range f.projects {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	f.projects = kept
	delete(f.tasks, id)
	f.mu.Unlock()
	ok(c, "deleted")
}

func (f *Fake) generateImage(c *gin.Context) {
	if !f.checkCSRF(c) {
		return
	}
	var req model.GenerateImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, 400, "invalid request")
		return
	}
	ok(c, f.addTask(req.ProjectID, req.Model, req.Prompt, model.CategoryImage))
}

func (f *Fake) generateVideo(c *gin.Context) {
	if !f.checkCSRF(c) {
		return
	}
	var req model.GenerateVideoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, 400, "invalid request")
		return
	}
	ok(c, f.addTask(req.ProjectID, req.Model, req.Prompt, model.CategoryVideo))
}

func (f *Fake) addTask(projectID int64, modelName, prompt, category string) model.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	task := model.Task{
		ID:        f.nextID,
		CreatedAt: time.Now().Unix(),
		Model:     modelName,
		Prompt:    prompt,
		Category:  category,
		Status:    model.TaskRunning,
	}
	f.tasks[projectID] = append(f.tasks[projectID], task)
	return task
}

func (f *Fake) upload(c *gin.Context) {
	if !f.checkCSRF(c) {
		return
	}
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		fail(c, 400, "file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		fail(c, 500, "read failed")
		return
	}

	filepath := "uploads/" + uuid.NewString() + "-" + header.Filename
	f.mu.Lock()
	f.files[filepath] = data
	f.uploads = append(f.uploads, filepath)
	f.mu.Unlock()
	ok(c, gin.H{"filePath": filepath})
}

func (f *Fake) listUploads(c *gin.Context) {
	f.mu.Lock()
	uploads := append([]string(nil), f.uploads...)
	f.mu.Unlock()
	ok(c, gin.H{"files": uploads})
}

func (f *Fake) fetchFile(c *gin.Context) {
	if _, authed := f.currentUser(c); !authed {
		c.Status(http.StatusForbidden)
		return
	}
	f.mu.Lock()
	data, exists := f.files[c.Query("f")]
	f.mu.Unlock()
	if !exists {
		c.Status(http.StatusNotFound)
		return
	}
	c.Data(http.StatusOK, "image/png", data)
}
