// Package proxmoxtest provides an in-memory Proxmox VE API server for tests.
//
// The server understands the endpoints proxmate uses: login, the cluster VM
// listing, clone/config/power/delete on qemu VMs, task status and log, the
// guest agent, node network and storage uploads. Mutations take effect
// immediately. The task that reports them finishes after a configurable
// number of status polls.
package proxmoxtest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// APIPrefix is the path the API is served under.
const APIPrefix = "/api2/json"

// VM is a guest known to the server.
type VM struct {
	VMID       int
	Node       string
	Name       string
	Template   bool
	Status     string
	Config     map[string]string
	AgentUp    bool
	Interfaces []Interface
}

// Interface is a network interface reported by the guest agent.
type Interface struct {
	Name string
	IPv4 []string
	IPv6 []string
}

// Request is a recorded API call.
type Request struct {
	Method string
	Path   string
	Form   url.Values
}

type task struct {
	node       string
	remaining  int
	exitStatus string
	lines      []string
}

type failure struct {
	method string
	suffix string
	status int
	reason string
	times  int
}

// Server is a fake Proxmox VE API.
type Server struct {
	srv *httptest.Server

	Username string
	Password string

	mu          sync.Mutex
	ticket      string
	csrf        string
	vms         map[int]*VM
	tasks       map[string]*task
	nodes       []string
	addresses   map[string]string
	storage     map[string][]string
	taskPolls   int
	exitByType  map[string]string
	failures    []*failure
	requests    []Request
	logins      int
	pid         int
	startAgents bool
}

// NewServer starts a server with a single node "pve1" and the credentials
// root@pam / secret.
func NewServer() *Server {
	s := &Server{
		Username:    "root@pam",
		Password:    "secret",
		vms:         map[int]*VM{},
		tasks:       map[string]*task{},
		nodes:       []string{"pve1"},
		addresses:   map[string]string{},
		storage:     map[string][]string{},
		taskPolls:   1,
		exitByType:  map[string]string{},
		startAgents: true,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /access/ticket", s.handleTicket)
	mux.HandleFunc("GET /cluster/resources", s.handleResources)
	mux.HandleFunc("GET /nodes", s.handleNodes)
	mux.HandleFunc("GET /nodes/{node}/network/{iface}", s.handleNetwork)
	mux.HandleFunc("GET /nodes/{node}/tasks/{upid}/status", s.handleTaskStatus)
	mux.HandleFunc("GET /nodes/{node}/tasks/{upid}/log", s.handleTaskLog)
	mux.HandleFunc("POST /nodes/{node}/qemu/{vmid}/clone", s.handleClone)
	mux.HandleFunc("GET /nodes/{node}/qemu/{vmid}/config", s.handleGetConfig)
	mux.HandleFunc("POST /nodes/{node}/qemu/{vmid}/config", s.handleSetConfig)
	mux.HandleFunc("GET /nodes/{node}/qemu/{vmid}/status/current", s.handleStatus)
	mux.HandleFunc("POST /nodes/{node}/qemu/{vmid}/status/{action}", s.handlePower)
	mux.HandleFunc("DELETE /nodes/{node}/qemu/{vmid}", s.handleDelete)
	mux.HandleFunc("POST /nodes/{node}/qemu/{vmid}/agent", s.handleAgent)
	mux.HandleFunc("GET /nodes/{node}/storage/{storage}/content", s.handleContent)
	mux.HandleFunc("DELETE /nodes/{node}/storage/{storage}/content/{volid}", s.handleDeleteContent)
	mux.HandleFunc("POST /nodes/{node}/storage/{storage}/upload", s.handleUpload)

	s.srv = httptest.NewServer(http.StripPrefix(APIPrefix, s.middleware(mux)))
	return s
}

// URL returns the API base URL to hand to proxmox.NewClient.
func (s *Server) URL() string {
	return s.srv.URL + APIPrefix
}

// Close shuts the server down.
func (s *Server) Close() {
	s.srv.Close()
}

// AddNode adds a cluster node.
func (s *Server) AddNode(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes = append(s.nodes, name)
}

// SetNodeAddress sets the address of iface on node.
func (s *Server) SetNodeAddress(node, iface, address string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addresses[node+"/"+iface] = address
}

// AddVM registers a VM or template.
func (s *Server) AddVM(vm VM) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if vm.Status == "" {
		vm.Status = "stopped"
	}
	if vm.Config == nil {
		vm.Config = map[string]string{}
	}
	cp := vm
	s.vms[vm.VMID] = &cp
}

// VM returns a copy of the VM with the given id.
func (s *Server) VM(vmid int) (VM, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	vm, ok := s.vms[vmid]
	if !ok {
		return VM{}, false
	}
	cp := *vm
	cp.Config = make(map[string]string, len(vm.Config))
	for k, v := range vm.Config {
		cp.Config[k] = v
	}
	return cp, true
}

// VMIDs returns the ids of every VM, sorted.
func (s *Server) VMIDs() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int, 0, len(s.vms))
	for id := range s.vms {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// SetInterfaces sets what the guest agent of vmid reports.
func (s *Server) SetInterfaces(vmid int, ifaces ...Interface) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if vm, ok := s.vms[vmid]; ok {
		vm.Interfaces = ifaces
	}
}

// SetAgentOnStart controls whether starting a VM brings its agent up.
func (s *Server) SetAgentOnStart(up bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startAgents = up
}

// SetTaskPolls sets how many status polls report a task as running.
func (s *Server) SetTaskPolls(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.taskPolls = n
}

// SetExitStatus makes tasks of taskType (qmclone, qmstart, ...) finish with status.
func (s *Server) SetExitStatus(taskType, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exitByType[taskType] = status
}

// Fail makes the next times requests whose path ends in suffix answer with
// status. times <= 0 fails forever.
func (s *Server) Fail(method, suffix string, status int, reason string, times int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, &failure{method: method, suffix: suffix, status: status, reason: reason, times: times})
}

// ExpireTicket invalidates the current ticket so the next call gets a 401.
func (s *Server) ExpireTicket() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ticket = ""
}

// Logins returns the number of successful logins.
func (s *Server) Logins() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logins
}

// Requests returns every request seen so far, in order.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// RequestsTo returns the requests with the given method whose path ends in suffix.
func (s *Server) RequestsTo(method, suffix string) []Request {
	var out []Request
	for _, r := range s.Requests() {
		if r.Method == method && strings.HasSuffix(r.Path, suffix) {
			out = append(out, r)
		}
	}
	return out
}

func (s *Server) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
			_ = r.ParseForm()
		}

		s.mu.Lock()
		s.requests = append(s.requests, Request{Method: r.Method, Path: r.URL.Path, Form: r.Form})
		f := s.matchFailure(r)
		authorized := r.URL.Path == "/access/ticket" || s.authorized(r)
		s.mu.Unlock()

		if !authorized {
			writeError(w, http.StatusUnauthorized, "authentication failure")
			return
		}
		if f != nil {
			writeError(w, f.status, f.reason)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// matchFailure consumes a matching injected failure. Caller holds s.mu.
func (s *Server) matchFailure(r *http.Request) *failure {
	for i, f := range s.failures {
		if f.method != r.Method || !strings.HasSuffix(r.URL.Path, f.suffix) {
			continue
		}
		if f.times > 0 {
			f.times--
			if f.times == 0 {
				s.failures = append(s.failures[:i], s.failures[i+1:]...)
			}
		}
		return f
	}
	return nil
}

// authorized checks the ticket cookie and, on mutations, the CSRF header.
// Caller holds s.mu.
func (s *Server) authorized(r *http.Request) bool {
	cookie, err := r.Cookie("PVEAuthCookie")
	if err != nil || s.ticket == "" || cookie.Value != s.ticket {
		return false
	}
	if r.Method != http.MethodGet && r.Header.Get("CSRFPreventionToken") != s.csrf {
		return false
	}
	return true
}

func (s *Server) handleTicket(w http.ResponseWriter, r *http.Request) {
	if r.FormValue("username") != s.Username || r.FormValue("password") != s.Password {
		writeError(w, http.StatusUnauthorized, "authentication failure")
		return
	}
	s.mu.Lock()
	s.ticket = "PVE:" + s.Username + ":" + uuid.NewString()
	s.csrf = uuid.NewString()
	s.logins++
	resp := map[string]string{"ticket": s.ticket, "CSRFPreventionToken": s.csrf, "username": s.Username}
	s.mu.Unlock()
	writeData(w, resp)
}

func (s *Server) handleResources(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]map[string]any, 0, len(s.vms))
	for _, id := range sortedIDs(s.vms) {
		vm := s.vms[id]
		entry := map[string]any{
			"id":     fmt.Sprintf("qemu/%d", vm.VMID),
			"vmid":   vm.VMID,
			"node":   vm.Node,
			"type":   "qemu",
			"name":   vm.Name,
			"status": vm.Status,
		}
		if vm.Template {
			entry["template"] = 1
		}
		out = append(out, entry)
	}
	writeData(w, out)
}

func (s *Server) handleNodes(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]map[string]string, 0, len(s.nodes))
	for _, n := range s.nodes {
		out = append(out, map[string]string{"node": n, "status": "online"})
	}
	writeData(w, out)
}

func (s *Server) handleNetwork(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	addr, ok := s.addresses[r.PathValue("node")+"/"+r.PathValue("iface")]
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusInternalServerError, "interface does not exist")
		return
	}
	writeData(w, map[string]string{"address": addr, "iface": r.PathValue("iface")})
}

func (s *Server) handleTaskStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[r.PathValue("upid")]
	if !ok {
		writeError(w, http.StatusInternalServerError, "no such task")
		return
	}
	if t.remaining > 0 {
		t.remaining--
		writeData(w, map[string]string{"status": "running"})
		return
	}
	if len(t.lines) == 0 || !strings.HasPrefix(t.lines[len(t.lines)-1], "TASK ") {
		t.lines = append(t.lines, "TASK "+t.exitStatus)
	}
	writeData(w, map[string]string{"status": "stopped", "exitstatus": t.exitStatus})
}

func (s *Server) handleTaskLog(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[r.PathValue("upid")]
	if !ok {
		writeError(w, http.StatusInternalServerError, "no such task")
		return
	}
	out := make([]map[string]any, 0, len(t.lines))
	for i, line := range t.lines {
		out = append(out, map[string]any{"n": i + 1, "t": line})
	}
	if len(out) == 0 {
		out = append(out, map[string]any{"n": 1, "t": "no content"})
	}
	writeData(w, out)
}

// newTask registers a task and returns its UPID. Caller holds s.mu.
func (s *Server) newTask(node, taskType, id string, lines ...string) string {
	s.pid++
	upid := fmt.Sprintf("UPID:%s:%08X:%08X:%08X:%s:%s:%s:", node, s.pid, s.pid*7, 0x65000000+s.pid, taskType, id, s.Username)
	exit := "OK"
	if st, ok := s.exitByType[taskType]; ok {
		exit = st
	}
	s.tasks[upid] = &task{node: node, remaining: s.taskPolls, exitStatus: exit, lines: lines}
	return upid
}

// lookup returns the VM named in the path. Caller holds s.mu.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*VM, bool) {
	vmid, err := strconv.Atoi(r.PathValue("vmid"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid vmid")
		return nil, false
	}
	vm, ok := s.vms[vmid]
	if !ok || vm.Node != r.PathValue("node") {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Configuration file 'nodes/%s/qemu-server/%d.conf' does not exist", r.PathValue("node"), vmid))
		return nil, false
	}
	return vm, true
}

func (s *Server) handleClone(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tmpl, ok := s.lookup(w, r)
	if !ok {
		return
	}
	newID, err := strconv.Atoi(r.FormValue("newid"))
	if err != nil {
		writeParamError(w, "newid", "value does not look like a valid VM ID")
		return
	}
	if _, exists := s.vms[newID]; exists {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("VM %d already exists", newID))
		return
	}
	target := r.FormValue("target")
	if target == "" {
		target = tmpl.Node
	}
	cfg := make(map[string]string, len(tmpl.Config))
	for k, v := range tmpl.Config {
		cfg[k] = v
	}
	if desc := r.FormValue("description"); desc != "" {
		cfg["description"] = desc
	}
	s.vms[newID] = &VM{
		VMID:       newID,
		Node:       target,
		Name:       r.FormValue("name"),
		Status:     "stopped",
		Config:     cfg,
		Interfaces: append([]Interface(nil), tmpl.Interfaces...),
	}
	writeData(w, s.newTask(tmpl.Node, "qmclone", strconv.Itoa(tmpl.VMID), "create full clone of drive scsi0", "transferred 2.0 GiB of 2.0 GiB (100.00%)"))
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	vm, ok := s.lookup(w, r)
	if !ok {
		return
	}
	out := make(map[string]any, len(vm.Config)+1)
	for k, v := range vm.Config {
		out[k] = v
	}
	out["name"] = vm.Name
	writeData(w, out)
}

func (s *Server) handleSetConfig(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	vm, ok := s.lookup(w, r)
	if !ok {
		return
	}
	for k := range r.PostForm {
		v := r.PostForm.Get(k)
		switch k {
		case "vmid":
			writeParamError(w, "vmid", "property is not defined in schema")
			return
		case "name":
			vm.Name = v
		case "delete":
			for _, key := range strings.Split(v, ",") {
				delete(vm.Config, strings.TrimSpace(key))
			}
		default:
			vm.Config[k] = v
		}
	}
	writeData(w, s.newTask(vm.Node, "qmconfig", strconv.Itoa(vm.VMID)))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	vm, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeData(w, map[string]any{"status": vm.Status, "vmid": vm.VMID, "name": vm.Name})
}

func (s *Server) handlePower(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	vm, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var taskType string
	switch r.PathValue("action") {
	case "start":
		vm.Status = "running"
		vm.AgentUp = s.startAgents
		taskType = "qmstart"
	case "stop":
		vm.Status = "stopped"
		vm.AgentUp = false
		taskType = "qmstop"
	case "shutdown":
		vm.Status = "stopped"
		vm.AgentUp = false
		taskType = "qmshutdown"
	default:
		writeError(w, http.StatusNotImplemented, "Method not implemented")
		return
	}
	writeData(w, s.newTask(vm.Node, taskType, strconv.Itoa(vm.VMID)))
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	vm, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if vm.Status == "running" {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("VM %d is running - destroy failed", vm.VMID))
		return
	}
	delete(s.vms, vm.VMID)
	writeData(w, s.newTask(vm.Node, "qmdestroy", strconv.Itoa(vm.VMID)))
}

func (s *Server) handleAgent(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	vm, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if !vm.AgentUp {
		writeError(w, http.StatusInternalServerError, "QEMU guest agent is not running")
		return
	}
	switch r.FormValue("command") {
	case "ping":
		writeData(w, map[string]any{})
	case "network-get-interfaces":
		result := make([]map[string]any, 0, len(vm.Interfaces))
		for _, iface := range vm.Interfaces {
			var addrs []map[string]any
			for _, ip := range iface.IPv4 {
				addrs = append(addrs, map[string]any{"ip-address-type": "ipv4", "ip-address": ip, "prefix": 24})
			}
			for _, ip := range iface.IPv6 {
				addrs = append(addrs, map[string]any{"ip-address-type": "ipv6", "ip-address": ip, "prefix": 64})
			}
			result = append(result, map[string]any{"name": iface.Name, "ip-addresses": addrs})
		}
		writeData(w, map[string]any{"result": result})
	default:
		writeParamError(w, "command", "value is not a valid agent command")
	}
}

func (s *Server) handleContent(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := r.PathValue("node") + "/" + r.PathValue("storage")
	out := make([]map[string]any, 0, len(s.storage[key]))
	for _, volid := range s.storage[key] {
		content := "iso"
		if _, rest, ok := strings.Cut(volid, ":"); ok {
			content, _, _ = strings.Cut(rest, "/")
		}
		out = append(out, map[string]any{"volid": volid, "content": content, "size": 1024})
	}
	writeData(w, out)
}

func (s *Server) handleDeleteContent(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := r.PathValue("node") + "/" + r.PathValue("storage")
	volid := r.PathValue("volid")
	files := s.storage[key]
	for i, f := range files {
		if f == volid {
			s.storage[key] = append(files[:i], files[i+1:]...)
			writeData(w, s.newTask(r.PathValue("node"), "imgdel", ""))
			return
		}
	}
	writeError(w, http.StatusInternalServerError, fmt.Sprintf("volume '%s' does not exist", volid))
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		writeParamError(w, "filename", err.Error())
		return
	}
	file, header, err := r.FormFile("filename")
	if err != nil {
		writeParamError(w, "filename", "property is missing and it is not optional")
		return
	}
	defer func() {
		_ = file.Close()
	}()
	if _, err := io.Copy(io.Discard, file); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	content := r.FormValue("content")
	s.mu.Lock()
	defer s.mu.Unlock()
	key := r.PathValue("node") + "/" + r.PathValue("storage")
	s.storage[key] = append(s.storage[key], fmt.Sprintf("%s:%s/%s", r.PathValue("storage"), content, header.Filename))
	writeData(w, s.newTask(r.PathValue("node"), "imgcopy", "", "starting file import from: "+header.Filename))
}

// StorageFiles returns the volume ids on node/storage.
func (s *Server) StorageFiles(node, storage string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.storage[node+"/"+storage]...)
}

// AddStorageFile places a volume on node/storage.
func (s *Server) AddStorageFile(node, storage, volid string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := node + "/" + storage
	s.storage[key] = append(s.storage[key], volid)
}

func sortedIDs(vms map[int]*VM) []int {
	ids := make([]int, 0, len(vms))
	for id := range vms {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func writeData(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
}

func writeError(w http.ResponseWriter, status int, reason string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"data": nil, "errors": map[string]string{"reason": reason}})
}

func writeParamError(w http.ResponseWriter, param, reason string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(map[string]any{"data": nil, "errors": map[string]string{param: reason}})
}
