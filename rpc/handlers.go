package rpc

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"chronicle/aggregate"
	"chronicle/core/chronicle"
	"chronicle/crypto"
)

type chronicleRef struct {
	Application string `json:"application"`
	Version     uint64 `json:"version"`
	RemoteChain uint64 `json:"remoteChain,omitempty"`
}

type deployParams struct {
	Caller string `json:"caller"`
	chronicleRef
}

type deployResult struct {
	Address string `json:"address"`
}

type updateLiquidityParams struct {
	Caller string `json:"caller"`
	chronicleRef
	Account   string `json:"account"`
	Liquidity string `json:"liquidity"`
}

type updateDataParams struct {
	Caller string `json:"caller"`
	chronicleRef
	Key     string `json:"key"`
	Payload string `json:"payload"`
}

type updateResult struct {
	TopIndex   uint64 `json:"topIndex"`
	LocalIndex uint64 `json:"localIndex"`
}

type liquidityQueryParams struct {
	chronicleRef
	Account   string  `json:"account,omitempty"`
	Timestamp *uint64 `json:"timestamp,omitempty"`
}

type liquidityResult struct {
	Liquidity string `json:"liquidity"`
}

type dataQueryParams struct {
	chronicleRef
	Key       string  `json:"key"`
	Timestamp *uint64 `json:"timestamp,omitempty"`
}

type dataResult struct {
	Found   bool   `json:"found"`
	Payload string `json:"payload,omitempty"`
}

type rootsResult struct {
	LiquidityRoot string `json:"liquidityRoot"`
	DataRoot      string `json:"dataRoot"`
}

type setPausedParams struct {
	Caller string `json:"caller"`
	Action string `json:"action"`
	Paused bool   `json:"paused"`
}

type commitmentsParams struct {
	Kind string `json:"kind"`
	chronicleRef
}

type commitmentsResult struct {
	Roots []string `json:"roots"`
}

// dispatch takes the server lock before routing: the write lock for mutation
// methods, the read lock otherwise. Deferring the unlock keeps the server
// usable even if a handler panics mid-call.
func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, req *rpcRequest) {
	if s.isMutation(req.Method) {
		s.mu.Lock()
		defer s.mu.Unlock()
	} else {
		s.mu.RLock()
		defer s.mu.RUnlock()
	}

	switch req.Method {
	case "chronicle_deploy":
		s.handleDeploy(w, req)
	case "chronicle_computeAddress":
		s.handleComputeAddress(w, req)
	case "chronicle_updateLiquidity":
		s.handleUpdateLiquidity(w, req)
	case "chronicle_updateData":
		s.handleUpdateData(w, req)
	case "chronicle_getLiquidity":
		s.handleGetLiquidity(w, req)
	case "chronicle_getTotalLiquidity":
		s.handleGetTotalLiquidity(w, req)
	case "chronicle_getData":
		s.handleGetData(w, req)
	case "chronicle_getRoots":
		s.handleGetRoots(w, req)
	case "chronicle_setPaused":
		s.handleSetPaused(w, req)
	case "chronicle_getCommitments":
		s.handleGetCommitments(w, req)
	default:
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "unknown method "+req.Method)
	}
}

func decodeParams(req *rpcRequest, out interface{}) error {
	if len(req.Params) != 1 {
		return errors.New("expected a single params object")
	}
	return json.Unmarshal(req.Params[0], out)
}

func (s *Server) resolve(w http.ResponseWriter, req *rpcRequest, ref chronicleRef) (*chronicle.Chronicle, crypto.Address, bool) {
	application, err := crypto.DecodeAddress(ref.Application)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid application address")
		return nil, crypto.Address{}, false
	}
	instance, ok := s.factory.Lookup(application, ref.Version, ref.RemoteChain)
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeInvalidParams, "no chronicle deployed for identity tuple")
		return nil, crypto.Address{}, false
	}
	return instance, application, true
}

func (s *Server) writeMutationError(w http.ResponseWriter, id interface{}, err error) {
	switch {
	case errors.Is(err, chronicle.ErrUnauthorized), errors.Is(err, aggregate.ErrNotOwner):
		s.metrics.ObserveRejection("unauthorized")
		writeError(w, http.StatusForbidden, id, codeUnauthorized, err.Error())
	case errors.Is(err, chronicle.ErrActionPaused):
		s.metrics.ObserveRejection("paused")
		writeError(w, http.StatusConflict, id, codePaused, err.Error())
	case errors.Is(err, chronicle.ErrAlreadyDeployed):
		s.metrics.ObserveRejection("collision")
		writeError(w, http.StatusConflict, id, codeConflict, err.Error())
	case errors.Is(err, chronicle.ErrLiquidityRange):
		s.metrics.ObserveRejection("range")
		writeError(w, http.StatusBadRequest, id, codeInvalidParams, err.Error())
	default:
		s.metrics.ObserveAggregatorRejection()
		writeError(w, http.StatusBadGateway, id, codeServerError, err.Error())
	}
}

func (s *Server) handleDeploy(w http.ResponseWriter, req *rpcRequest) {
	var params deployParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	caller, err := crypto.DecodeAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address")
		return
	}
	application, err := crypto.DecodeAddress(params.Application)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid application address")
		return
	}

	instance, err := s.factory.Deploy(caller, application, params.Version, params.RemoteChain)
	if err != nil {
		s.writeMutationError(w, req.ID, err)
		return
	}
	s.metrics.SetDeployed(int(s.factory.Deployed()))
	writeResult(w, req.ID, deployResult{Address: instance.Address().String()})
}

func (s *Server) handleComputeAddress(w http.ResponseWriter, req *rpcRequest) {
	var params chronicleRef
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	application, err := crypto.DecodeAddress(params.Application)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid application address")
		return
	}
	addr := s.factory.ComputeAddress(application, params.Version, params.RemoteChain)
	writeResult(w, req.ID, deployResult{Address: addr.String()})
}

func (s *Server) handleUpdateLiquidity(w http.ResponseWriter, req *rpcRequest) {
	var params updateLiquidityParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	instance, _, ok := s.resolve(w, req, params.chronicleRef)
	if !ok {
		return
	}
	caller, err := crypto.DecodeAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address")
		return
	}
	account, err := crypto.DecodeAddress(params.Account)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid account address")
		return
	}
	liquidity, ok2 := new(big.Int).SetString(strings.TrimSpace(params.Liquidity), 10)
	if !ok2 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "liquidity must be a base-10 integer")
		return
	}

	topIndex, localIndex, err := instance.UpdateLiquidity(caller, account, liquidity)
	if err != nil {
		s.writeMutationError(w, req.ID, err)
		return
	}
	s.metrics.ObserveMutation(string(chronicle.ActionUpdateLiquidity))
	s.metrics.SetLeafCounts(instance.Address().String(), instance.LiquidityLeafCount(), instance.DataLeafCount())
	writeResult(w, req.ID, updateResult{TopIndex: topIndex, LocalIndex: localIndex})
}

func (s *Server) handleUpdateData(w http.ResponseWriter, req *rpcRequest) {
	var params updateDataParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	instance, _, ok := s.resolve(w, req, params.chronicleRef)
	if !ok {
		return
	}
	caller, err := crypto.DecodeAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address")
		return
	}
	key, err := parseDataKey(params.Key)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	payload, err := base64.StdEncoding.DecodeString(params.Payload)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "payload must be base64")
		return
	}

	topIndex, localIndex, err := instance.UpdateData(caller, key, payload)
	if err != nil {
		s.writeMutationError(w, req.ID, err)
		return
	}
	s.metrics.ObserveMutation(string(chronicle.ActionUpdateData))
	s.metrics.SetLeafCounts(instance.Address().String(), instance.LiquidityLeafCount(), instance.DataLeafCount())
	writeResult(w, req.ID, updateResult{TopIndex: topIndex, LocalIndex: localIndex})
}

func (s *Server) handleGetLiquidity(w http.ResponseWriter, req *rpcRequest) {
	var params liquidityQueryParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	instance, _, ok := s.resolve(w, req, params.chronicleRef)
	if !ok {
		return
	}
	account, err := crypto.DecodeAddress(params.Account)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid account address")
		return
	}
	var value *big.Int
	if params.Timestamp != nil {
		value = instance.AccountLiquidityAt(account, *params.Timestamp)
	} else {
		value = instance.AccountLiquidity(account)
	}
	writeResult(w, req.ID, liquidityResult{Liquidity: value.String()})
}

func (s *Server) handleGetTotalLiquidity(w http.ResponseWriter, req *rpcRequest) {
	var params liquidityQueryParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	instance, _, ok := s.resolve(w, req, params.chronicleRef)
	if !ok {
		return
	}
	var value *big.Int
	if params.Timestamp != nil {
		value = instance.TotalLiquidityAt(*params.Timestamp)
	} else {
		value = instance.TotalLiquidity()
	}
	writeResult(w, req.ID, liquidityResult{Liquidity: value.String()})
}

func (s *Server) handleGetData(w http.ResponseWriter, req *rpcRequest) {
	var params dataQueryParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	instance, _, ok := s.resolve(w, req, params.chronicleRef)
	if !ok {
		return
	}
	key, err := parseDataKey(params.Key)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	var (
		payload []byte
		found   bool
	)
	if params.Timestamp != nil {
		payload, found, err = instance.DataAt(key, *params.Timestamp)
	} else {
		payload, found, err = instance.Data(key)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, err.Error())
		return
	}
	result := dataResult{Found: found}
	if found {
		result.Payload = base64.StdEncoding.EncodeToString(payload)
	}
	writeResult(w, req.ID, result)
}

func (s *Server) handleGetRoots(w http.ResponseWriter, req *rpcRequest) {
	var params chronicleRef
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	instance, _, ok := s.resolve(w, req, params)
	if !ok {
		return
	}
	writeResult(w, req.ID, rootsResult{
		LiquidityRoot: instance.LiquidityRoot().Hex(),
		DataRoot:      instance.DataRoot().Hex(),
	})
}

func (s *Server) handleSetPaused(w http.ResponseWriter, req *rpcRequest) {
	var params setPausedParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	caller, err := crypto.DecodeAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address")
		return
	}
	err = s.aggregator.SetPaused(caller, chronicle.Action(params.Action), params.Paused)
	if err != nil {
		if errors.Is(err, aggregate.ErrUnknownAction) {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
			return
		}
		s.writeMutationError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"paused": params.Paused})
}

func (s *Server) handleGetCommitments(w http.ResponseWriter, req *rpcRequest) {
	var params commitmentsParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	application, err := crypto.DecodeAddress(params.Application)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid application address")
		return
	}
	var roots []common.Hash
	switch params.Kind {
	case "liquidity":
		roots, err = s.aggregator.LiquidityCommitments(params.Version, application)
	case "data":
		roots, err = s.aggregator.DataCommitments(params.Version, application)
	default:
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "kind must be liquidity or data")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, err.Error())
		return
	}
	result := commitmentsResult{Roots: make([]string, len(roots))}
	for i, root := range roots {
		result.Roots[i] = root.Hex()
	}
	writeResult(w, req.ID, result)
}

func parseDataKey(raw string) (common.Hash, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(raw), "0x")
	decoded, err := hex.DecodeString(trimmed)
	if err != nil {
		return common.Hash{}, errors.New("key must be hex encoded")
	}
	if len(decoded) == 0 || len(decoded) > common.HashLength {
		return common.Hash{}, errors.New("key must be between 1 and 32 bytes")
	}
	return common.BytesToHash(decoded), nil
}
