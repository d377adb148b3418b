// Package httpapi exposes the chat services over JSON HTTP.
package httpapi

import (
	"log/slog"
	"net/http"

	"my-chat-backend/auth"
	"my-chat-backend/domain"
	"my-chat-backend/domain/event"
	"my-chat-backend/media"
	"my-chat-backend/services"

	"github.com/go-playground/validator/v10"
)

type API struct {
	log          *slog.Logger
	chat         services.IChatService
	groups       services.IGroupService
	blocks       services.IBlockService
	users        services.IUserService
	validate     *validator.Validate
	maxBodyBytes int64
}

// NewAPI builds the handlers. maxImageBytes bounds the decoded image, the
// request body is allowed the base64 overhead on top of it.
func NewAPI(log *slog.Logger, chat services.IChatService, groups services.IGroupService,
	blocks services.IBlockService, users services.IUserService, maxImageBytes int) *API {
	return &API{
		log:          log,
		chat:         chat,
		groups:       groups,
		blocks:       blocks,
		users:        users,
		validate:     validator.New(),
		maxBodyBytes: int64(maxImageBytes)*4/3 + 64*1024,
	}
}

// Routes mounts the API behind the token middleware next to the public
// media and health endpoints.
func (a *API) Routes(tokens *auth.Tokens, socket http.Handler, mediaDir string) http.Handler {
	private := http.NewServeMux()
	private.HandleFunc("GET /api/users", a.sidebar)
	private.HandleFunc("GET /api/users/{id}/presence", a.presence)
	private.HandleFunc("GET /api/messages/unread-counts", a.unreadCounts)
	private.HandleFunc("GET /api/messages/{id}", a.conversation)
	private.HandleFunc("POST /api/messages/send/{id}", a.sendDirect)
	private.HandleFunc("POST /api/groups", a.createGroup)
	private.HandleFunc("GET /api/groups", a.listGroups)
	private.HandleFunc("POST /api/groups/{groupId}/send", a.sendGroup)
	private.HandleFunc("GET /api/groups/{groupId}/messages", a.groupMessages)
	private.HandleFunc("PATCH /api/groups/{groupId}/add-members", a.addMembers)
	private.HandleFunc("POST /api/auth/block/{userId}", a.block)
	private.HandleFunc("POST /api/auth/unblock/{userId}", a.unblock)
	private.HandleFunc("GET /api/auth/blocked", a.blocked)
	if socket != nil {
		private.Handle("GET /ws", socket)
	}

	mux := http.NewServeMux()
	mux.Handle("/", auth.Middleware(tokens, a.log)(private))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if mediaDir != "" {
		mux.Handle("GET /media/", http.StripPrefix("/media/", http.FileServer(http.Dir(mediaDir))))
	}
	return mux
}

func (a *API) me(r *http.Request) domain.UserID {
	id, _ := auth.UserIDFrom(r.Context())
	return id
}

func (a *API) sidebar(w http.ResponseWriter, r *http.Request) {
	users, err := a.users.Sidebar(r.Context(), a.me(r), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, a.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, userViews(users))
}

func (a *API) presence(w http.ResponseWriter, r *http.Request) {
	state, err := a.users.Presence(r.Context(), domain.UserID(r.PathValue("id")))
	if err != nil {
		writeError(w, a.log, r, err)
		return
	}
	resp := presenceResponse{UserID: string(state.UserID), Status: string(state.Status)}
	if !state.LastSeen.IsZero() {
		resp.LastSeen = &state.LastSeen
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) unreadCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := a.chat.UnreadCounts(r.Context(), a.me(r))
	if err != nil {
		writeError(w, a.log, r, err)
		return
	}
	out := make(map[string]int, len(counts))
	for id, n := range counts {
		out[string(id)] = n
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) conversation(w http.ResponseWriter, r *http.Request) {
	messages, err := a.chat.Conversation(r.Context(), a.me(r), domain.UserID(r.PathValue("id")))
	if err != nil {
		writeError(w, a.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageViews(messages))
}

func (a *API) sendDirect(w http.ResponseWriter, r *http.Request) {
	var body sendMessageRequest
	if err := a.decode(w, r, &body); err != nil {
		writeError(w, a.log, r, err)
		return
	}
	image, err := media.DecodeDataURL(body.Image)
	if err != nil {
		writeError(w, a.log, r, err)
		return
	}
	msg, err := a.chat.SendDirect(r.Context(), domain.SendDirectCommand{
		SenderID:   a.me(r),
		ReceiverID: domain.UserID(r.PathValue("id")),
		Text:       body.Text,
		Image:      image,
	})
	if err != nil {
		writeError(w, a.log, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, event.NewMessageView(msg))
}

func (a *API) createGroup(w http.ResponseWriter, r *http.Request) {
	var body createGroupRequest
	if err := a.decode(w, r, &body); err != nil {
		writeError(w, a.log, r, err)
		return
	}
	group, err := a.groups.Create(r.Context(), domain.CreateGroupCommand{
		CreatorID: a.me(r),
		Name:      body.Name,
		MemberIDs: toUserIDs(body.Members),
	})
	if err != nil {
		writeError(w, a.log, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, event.NewGroupView(group, nil))
}

func (a *API) listGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := a.groups.ListForUser(r.Context(), a.me(r))
	if err != nil {
		writeError(w, a.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, groupViews(groups))
}

func (a *API) sendGroup(w http.ResponseWriter, r *http.Request) {
	var body sendMessageRequest
	if err := a.decode(w, r, &body); err != nil {
		writeError(w, a.log, r, err)
		return
	}
	image, err := media.DecodeDataURL(body.Image)
	if err != nil {
		writeError(w, a.log, r, err)
		return
	}
	msg, err := a.chat.SendGroup(r.Context(), domain.SendGroupCommand{
		SenderID: a.me(r),
		GroupID:  domain.GroupID(r.PathValue("groupId")),
		Text:     body.Text,
		Image:    image,
	})
	if err != nil {
		writeError(w, a.log, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, event.NewMessageView(msg))
}

func (a *API) groupMessages(w http.ResponseWriter, r *http.Request) {
	messages, err := a.chat.GroupMessages(r.Context(), a.me(r), domain.GroupID(r.PathValue("groupId")))
	if err != nil {
		writeError(w, a.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageViews(messages))
}

func (a *API) addMembers(w http.ResponseWriter, r *http.Request) {
	var body addMembersRequest
	if err := a.decode(w, r, &body); err != nil {
		writeError(w, a.log, r, err)
		return
	}
	group, err := a.groups.AddMembers(r.Context(), domain.AddMembersCommand{
		ActorID: a.me(r),
		GroupID: domain.GroupID(r.PathValue("groupId")),
		UserIDs: toUserIDs(body.Members),
	})
	if err != nil {
		writeError(w, a.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, event.NewGroupView(group, nil))
}

func (a *API) block(w http.ResponseWriter, r *http.Request) {
	if err := a.blocks.Block(r.Context(), a.me(r), domain.UserID(r.PathValue("userId"))); err != nil {
		writeError(w, a.log, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) unblock(w http.ResponseWriter, r *http.Request) {
	if err := a.blocks.Unblock(r.Context(), a.me(r), domain.UserID(r.PathValue("userId"))); err != nil {
		writeError(w, a.log, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) blocked(w http.ResponseWriter, r *http.Request) {
	users, err := a.blocks.Blocked(r.Context(), a.me(r))
	if err != nil {
		writeError(w, a.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, userViews(users))
}
