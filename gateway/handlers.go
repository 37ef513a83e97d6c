package gateway

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/caolo/simcore/auth"
	"github.com/caolo/simcore/compiler"
	simerrors "github.com/caolo/simcore/errors"
	"github.com/caolo/simcore/geometry"
	"github.com/caolo/simcore/scriptapi"
	"github.com/caolo/simcore/world"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError logs and responds with a structured SimError built from
// typ and message, via the errors package shared with every other
// adapter-layer failure path.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, typ simerrors.ErrorType, message string) {
	simerrors.WriteError(w, r, s.Log, simerrors.NewError(typ, message))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.WorldMutex.RLock()
	tick := s.World.Time
	s.WorldMutex.RUnlock()

	cacheStatus := "ok"
	if err := s.Store.Ping(r.Context()); err != nil {
		cacheStatus = "degraded"
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok", "tick": tick, "cache": cacheStatus})
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Store.Schema(r.Context()))
}

// handleTerrain serves one room's terrain tiles. room is given as
// "q;r", matching the snapshot's own room-key convention.
func (s *Server) handleTerrain(w http.ResponseWriter, r *http.Request) {
	room, ok := parseRoomParam(r.URL.Query().Get("room"))
	if !ok {
		s.writeError(w, r, simerrors.ValidationError, "room query parameter must be \"q;r\"")
		return
	}

	s.WorldMutex.RLock()
	defer s.WorldMutex.RUnlock()

	existing, ok := s.World.Rooms[room]
	if !ok {
		writeJSON(w, http.StatusOK, world.TerrainSnapshot{})
		return
	}

	var walls []world.Point
	for _, entry := range existing.Terrain.Entries() {
		if entry.Value.IsWall() {
			walls = append(walls, world.Point{Q: entry.Point.Q, R: entry.Point.R})
		}
	}
	writeJSON(w, http.StatusOK, world.TerrainSnapshot{Walls: walls})
}

func parseRoomParam(raw string) (geometry.Axial, bool) {
	parts := strings.SplitN(raw, ";", 2)
	if len(parts) != 2 {
		return geometry.Axial{}, false
	}
	q, err1 := strconv.ParseInt(parts[0], 10, 32)
	r, err2 := strconv.ParseInt(parts[1], 10, 32)
	if err1 != nil || err2 != nil {
		return geometry.Axial{}, false
	}
	return geometry.Axial{Q: int32(q), R: int32(r)}, true
}

// compileRequest mirrors compiler.CompilationUnit over the wire.
type compileRequest struct {
	Nodes  map[string]compiler.AstNode  `json:"nodes"`
	Inputs map[string][]compiler.NodeId `json:"inputs"`
}

// rootProgram is one root's independently runnable bytecode, base64
// encoded for the wire.
type rootProgram struct {
	RootId   uint32 `json:"rootId"`
	Bytecode string `json:"bytecode"`
}

type compileResponse struct {
	Roots []rootProgram `json:"roots"`
}

// parseCompilationUnit converts the wire compileRequest shape (string
// node ids, since JSON object keys are always strings) into a
// compiler.CompilationUnit.
func parseCompilationUnit(req compileRequest) (*compiler.CompilationUnit, error) {
	unit := &compiler.CompilationUnit{
		Nodes:  make(map[compiler.NodeId]compiler.AstNode, len(req.Nodes)),
		Inputs: make(map[compiler.NodeId][]compiler.NodeId, len(req.Inputs)),
	}
	for k, v := range req.Nodes {
		id, err := strconv.ParseUint(k, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid node id %q", k)
		}
		unit.Nodes[compiler.NodeId(id)] = v
	}
	for k, v := range req.Inputs {
		id, err := strconv.ParseUint(k, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid node id %q", k)
		}
		unit.Inputs[compiler.NodeId(id)] = v
	}
	return unit, nil
}

// handleCompile compiles a posted node graph and returns its bytecode
// base64-encoded; a compile error is answered with status 422 and the
// error's message under an "error" key.
func (s *Server) handleCompile(w http.ResponseWriter, r *http.Request) {
	var req compileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, simerrors.ValidationError, "invalid request body: "+err.Error())
		return
	}

	unit, err := parseCompilationUnit(req)
	if err != nil {
		s.writeError(w, r, simerrors.ValidationError, err.Error())
		return
	}

	program, err := compiler.New(scriptapi.Signatures()).Compile(unit)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, compileResponseOf(program))
}

func compileResponseOf(program *compiler.Program) compileResponse {
	roots := make([]rootProgram, len(program.Roots))
	for i, root := range program.Roots {
		roots[i] = rootProgram{
			RootId:   uint32(root.RootId),
			Bytecode: base64.StdEncoding.EncodeToString(root.Bytecode),
		}
	}
	return compileResponse{Roots: roots}
}

type scriptCommitRequest struct {
	ScriptId string `json:"scriptId"`
	Name     string `json:"name"`
	Payload  string `json:"payload"`
}

// handleScriptCommit persists a named script under the authenticated
// user, recompiles its payload, and installs the fresh program so the
// next tick's collect stage picks it up. Payload is the ASCII
// (JSON-encoded) rendering of a compiler.CompilationUnit, the same
// shape handleCompile accepts.
func (s *Server) handleScriptCommit(w http.ResponseWriter, r *http.Request) {
	owner, ok := auth.UserFromContext(r.Context())
	if !ok {
		s.writeError(w, r, simerrors.UnauthorizedError, "authentication required")
		return
	}

	var req scriptCommitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, simerrors.ValidationError, "invalid request body: "+err.Error())
		return
	}
	if verr := simerrors.RequireNotEmpty(req.ScriptId, "scriptId"); verr != nil {
		s.writeError(w, r, simerrors.ValidationError, verr.Error())
		return
	}
	if verr := simerrors.RequireNotEmpty(req.Name, "name"); verr != nil {
		s.writeError(w, r, simerrors.ValidationError, verr.Error())
		return
	}

	var graph compileRequest
	if err := json.Unmarshal([]byte(req.Payload), &graph); err != nil {
		s.writeError(w, r, simerrors.ValidationError, "payload is not a valid compilation unit: "+err.Error())
		return
	}
	unit, err := parseCompilationUnit(graph)
	if err != nil {
		s.writeError(w, r, simerrors.ValidationError, err.Error())
		return
	}
	program, err := compiler.New(scriptapi.Signatures()).Compile(unit)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{"error": err.Error()})
		return
	}

	id := world.ScriptId(req.ScriptId)
	if err := s.Store.SaveScript(r.Context(), owner, id, req.Name, req.Payload); err != nil {
		s.writeError(w, r, simerrors.DatabaseError, fmt.Sprintf("failed to persist script: %v", err))
		return
	}
	s.Store.CacheProgram(r.Context(), id, program)

	s.WorldMutex.Lock()
	s.World.Scripts.Insert(id, world.ScriptSource{Owner: owner, Name: req.Name, Payload: req.Payload})
	s.World.Programs.Insert(id, program)
	s.WorldMutex.Unlock()

	writeJSON(w, http.StatusOK, compileResponseOf(program))
}

type userUpsertRequest struct {
	DisplayName string `json:"displayName"`
}

func (s *Server) handleUserUpdate(w http.ResponseWriter, r *http.Request) {
	s.upsertUser(w, r)
}

func (s *Server) handleUserRegister(w http.ResponseWriter, r *http.Request) {
	s.upsertUser(w, r)
}

func (s *Server) upsertUser(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.UserFromContext(r.Context())
	if !ok {
		s.writeError(w, r, simerrors.UnauthorizedError, "authentication required")
		return
	}

	var req userUpsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, simerrors.ValidationError, "invalid request body: "+err.Error())
		return
	}

	profile, err := s.Store.UpsertUser(r.Context(), id, req.DisplayName)
	if err != nil {
		s.writeError(w, r, simerrors.DatabaseError, fmt.Sprintf("failed to save user: %v", err))
		return
	}

	s.WorldMutex.Lock()
	s.World.Users.Insert(id, profile)
	s.WorldMutex.Unlock()

	writeJSON(w, http.StatusOK, profile)
}
