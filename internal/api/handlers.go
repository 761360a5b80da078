package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/unkn0wn-root/reststudio/internal/codec"
	"github.com/unkn0wn-root/reststudio/internal/codegen"
	"github.com/unkn0wn-root/reststudio/internal/curl"
	"github.com/unkn0wn-root/reststudio/internal/executor"
	"github.com/unkn0wn-root/reststudio/internal/history"
	"github.com/unkn0wn-root/reststudio/internal/nettrace"
	"github.com/unkn0wn-root/reststudio/internal/notify"
	"github.com/unkn0wn-root/reststudio/internal/restmodel"
	"github.com/unkn0wn-root/reststudio/internal/vars"
)

var errNoExecutor = errors.New("sending is not configured")

type sendRequest struct {
	Request     restmodel.Request `json:"request"`
	Environment string            `json:"environment"`
	Locale      string            `json:"locale"`
	RequestID   string            `json:"requestId"`
}

type sendResponse struct {
	Response       restmodel.Response `json:"response"`
	Status         history.Status     `json:"status"`
	HistoryID      string             `json:"historyId"`
	URL            string             `json:"url"`
	Route          string             `json:"route"`
	DurationMS     int64              `json:"durationMs"`
	RequestWeight  int                `json:"requestWeight"`
	ResponseWeight int                `json:"responseWeight"`
	ErrorDetails   string             `json:"errorDetails,omitempty"`
	HistoryError   string             `json:"historyError,omitempty"`
	Timeline       *nettrace.Timeline `json:"timeline,omitempty"`
}

func (s *server) send(c *call) (any, error) {
	if s.Executor == nil {
		return nil, errNoExecutor
	}
	var in sendRequest
	if err := c.decode(&in); err != nil {
		return nil, err
	}
	env := in.Environment
	if env == "" {
		env = s.DefaultEnvironment
	}
	locale := s.localeOr(in.Locale)

	res, err := s.Executor.Send(c.req.Context(), in.Request, executor.SendOptions{
		Environment: env,
		Locale:      locale,
		RequestID:   in.RequestID,
		Notifier:    c.notices,
	})
	if err != nil {
		return nil, err
	}

	route, _ := c.codec.BuildRoute(codec.Route{
		Locale:    locale,
		Request:   in.Request,
		RequestID: in.RequestID,
	})
	out := sendResponse{
		Response:       res.Response,
		Status:         res.Status,
		HistoryID:      res.HistoryID,
		URL:            res.URL,
		Route:          route,
		DurationMS:     res.Duration.Milliseconds(),
		RequestWeight:  res.RequestWeight,
		ResponseWeight: res.ResponseWeight,
		ErrorDetails:   res.ErrorDetails,
		Timeline:       res.Timeline,
	}
	if res.HistoryErr != nil {
		out.HistoryError = res.HistoryErr.Error()
	}
	return out, nil
}

type codegenRequest struct {
	Request  restmodel.Request `json:"request"`
	Language string            `json:"language"`
}

type codegenResponse struct {
	Language string            `json:"language,omitempty"`
	Code     string            `json:"code"`
	Snippets map[string]string `json:"snippets,omitempty"`
}

// codegen renders one language, or all of them when none is named. An
// unknown language renders "" with a warning rather than failing.
func (s *server) codegen(c *call) (any, error) {
	var in codegenRequest
	if err := c.decode(&in); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Language) == "" {
		return codegenResponse{Snippets: codegen.GenerateAll(in.Request)}, nil
	}
	lang, ok := codegen.ParseLanguage(in.Language)
	if !ok {
		notify.Warn(c.notifier, fmt.Sprintf("Unknown language %q", in.Language))
		return codegenResponse{Language: in.Language}, nil
	}
	return codegenResponse{Language: lang.String(), Code: codegen.Generate(in.Request, lang)}, nil
}

type languageInfo struct {
	Name      string `json:"name"`
	Extension string `json:"extension"`
}

func (s *server) languages(*call) (any, error) {
	all := codegen.Languages()
	out := make([]languageInfo, 0, len(all))
	for _, lang := range all {
		out = append(out, languageInfo{Name: lang.String(), Extension: lang.Extension()})
	}
	return out, nil
}

type routeRequest struct {
	Request   restmodel.Request `json:"request"`
	Locale    string            `json:"locale"`
	RequestID string            `json:"requestId"`
}

type routeResponse struct {
	Route     string            `json:"route"`
	Locale    string            `json:"locale"`
	Request   restmodel.Request `json:"request"`
	RequestID string            `json:"requestId,omitempty"`
}

func (s *server) encodeRoute(c *call) (any, error) {
	var in routeRequest
	if err := c.decode(&in); err != nil {
		return nil, err
	}
	locale := s.localeOr(in.Locale)
	route, err := c.codec.BuildRoute(codec.Route{Locale: locale, Request: in.Request, RequestID: in.RequestID})
	if err != nil {
		return nil, err
	}
	return routeResponse{Route: route, Locale: locale, Request: in.Request, RequestID: in.RequestID}, nil
}

// decodeRoute answers a shared link with the request it encodes. Segments
// that do not decode come back empty with a notice.
func (s *server) decodeRoute(c *call) (any, error) {
	route, err := c.codec.ParseRoute(c.req.URL.EscapedPath(), c.req.URL.RawQuery)
	if err != nil {
		return nil, err
	}
	if route.Request.Headers == nil {
		route.Request.Headers = []restmodel.Header{}
	}
	built, _ := c.codec.BuildRoute(route)
	return routeResponse{
		Route:     built,
		Locale:    route.Locale,
		Request:   route.Request,
		RequestID: route.RequestID,
	}, nil
}

type curlRequest struct {
	Command string `json:"command"`
}

type curlResponse struct {
	Request  restmodel.Request `json:"request"`
	Warnings []string          `json:"warnings"`
}

func (s *server) importCurl(c *call) (any, error) {
	var in curlRequest
	if err := c.decode(&in); err != nil {
		return nil, err
	}
	res, err := curl.Parse(in.Command)
	if err != nil {
		return nil, err
	}
	for _, w := range res.Warnings {
		notify.Warn(c.notifier, w)
	}
	if res.Warnings == nil {
		res.Warnings = []string{}
	}
	return curlResponse{Request: res.Request, Warnings: res.Warnings}, nil
}

type environment struct {
	Name      string          `json:"name"`
	Variables []vars.Variable `json:"variables"`
}

func (s *server) environment(name string) environment {
	vs := s.Vars.Variables(name)
	if vs == nil {
		vs = []vars.Variable{}
	}
	return environment{Name: name, Variables: vs}
}

func (s *server) listEnvironments(*call) (any, error) {
	names := s.Vars.GetEnv()
	out := make([]environment, 0, len(names))
	for _, name := range names {
		out = append(out, s.environment(name))
	}
	return out, nil
}

func (s *server) existingEnv(c *call) (string, error) {
	name := c.pathVar("name")
	if !s.Vars.EnvironmentExists(name) {
		return "", errNotFound{What: fmt.Sprintf("environment %q", name)}
	}
	return name, nil
}

func (s *server) getEnvironment(c *call) (any, error) {
	name, err := s.existingEnv(c)
	if err != nil {
		return nil, err
	}
	return s.environment(name), nil
}

func (s *server) putEnvironment(c *call) (any, error) {
	var in environment
	if err := c.decode(&in); err != nil {
		return nil, err
	}
	name := c.pathVar("name")
	if strings.TrimSpace(name) == "" {
		return nil, errBadRequest{Err: errors.New("environment name is empty")}
	}
	if err := s.Vars.AddEnvOrdered(name, in.Variables); err != nil {
		return nil, err
	}
	return s.environment(name), nil
}

func (s *server) deleteEnvironment(c *call) (any, error) {
	name, err := s.existingEnv(c)
	if err != nil {
		return nil, err
	}
	return nil, s.Vars.RemoveEnv(name)
}

type renameRequest struct {
	To string `json:"to"`
}

func (s *server) renameEnvironment(c *call) (any, error) {
	name, err := s.existingEnv(c)
	if err != nil {
		return nil, err
	}
	var in renameRequest
	if err := c.decode(&in); err != nil {
		return nil, err
	}
	to := strings.TrimSpace(in.To)
	if to == "" {
		return nil, errBadRequest{Err: errors.New("new environment name is empty")}
	}
	if err := s.Vars.RenameEnv(name, to); err != nil {
		return nil, err
	}
	return s.environment(to), nil
}

func (s *server) clearEnvironment(c *call) (any, error) {
	name, err := s.existingEnv(c)
	if err != nil {
		return nil, err
	}
	if err := s.Vars.ClearEnv(name); err != nil {
		return nil, err
	}
	return s.environment(name), nil
}

type variableRequest struct {
	Value string `json:"value"`
}

func (s *server) setVariable(c *call) (any, error) {
	var in variableRequest
	if err := c.decode(&in); err != nil {
		return nil, err
	}
	name := c.pathVar("name")
	if err := s.Vars.SetVariable(name, c.pathVar("key"), in.Value); err != nil {
		return nil, err
	}
	return s.environment(name), nil
}

func (s *server) removeVariable(c *call) (any, error) {
	name := c.pathVar("name")
	key := c.pathVar("key")
	if !s.Vars.VariableExists(name, key) {
		return nil, errNotFound{What: fmt.Sprintf("variable %q", key)}
	}
	if err := s.Vars.RemoveVariable(name, key); err != nil {
		return nil, err
	}
	return s.environment(name), nil
}

// exportEnvironment streams YAML, not the JSON envelope, so the body can
// be saved as a file directly.
func (s *server) exportEnvironment(w http.ResponseWriter, r *http.Request) {
	c := &call{req: r}
	name, err := s.existingEnv(c)
	if err != nil {
		s.writeJSON(w, http.StatusNotFound, envelope{Error: err.Error(), Code: "not_found"})
		return
	}
	var buf bytes.Buffer
	if err := s.Vars.ExportEnv(&buf, name); err != nil {
		s.writeJSON(w, http.StatusInternalServerError, envelope{Error: err.Error(), Code: "storage"})
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name+".yaml"))
	_, _ = w.Write(buf.Bytes())
}

func (s *server) importEnvironment(w http.ResponseWriter, r *http.Request) {
	s.handle(func(c *call) (any, error) {
		name, err := s.Vars.ImportEnv(io.LimitReader(r.Body, maxBodyBytes), r.URL.Query().Get("name"))
		if err != nil {
			return nil, err
		}
		return s.environment(name), nil
	})(w, r)
}

func (s *server) listHistory(c *call) (any, error) {
	if s.History == nil {
		return []history.Record{}, nil
	}
	records, err := s.History.List(c.req.Context())
	if err != nil {
		return nil, err
	}
	if raw := c.req.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return nil, errBadRequest{Err: fmt.Errorf("invalid limit %q", raw)}
		}
		if limit < len(records) {
			records = records[:limit]
		}
	}
	if records == nil {
		records = []history.Record{}
	}
	return records, nil
}

func (s *server) getHistory(c *call) (any, error) {
	id := c.pathVar("id")
	if s.History == nil {
		return nil, errNotFound{What: fmt.Sprintf("history record %q", id)}
	}
	rec, ok, err := s.History.Get(c.req.Context(), id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errNotFound{What: fmt.Sprintf("history record %q", id)}
	}
	return rec, nil
}

func (s *server) localeOr(locale string) string {
	if strings.TrimSpace(locale) == "" {
		return s.Locale
	}
	return locale
}
