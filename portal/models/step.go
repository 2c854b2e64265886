package models

import "fmt"

// ActionType tags one executable step. Transfer tags encode the token standard and the
// direction: m2s (mainnet to bridge chain), s2m (bridge chain to mainnet) and s2s.
type ActionType string

const (
	ActionEthM2S ActionType = "eth_m2s"
	ActionEthS2M ActionType = "eth_s2m"
	ActionEthS2S ActionType = "eth_s2s"

	ActionERC20M2S ActionType = "erc20_m2s"
	ActionERC20S2M ActionType = "erc20_s2m"
	ActionERC20S2S ActionType = "erc20_s2s"

	ActionERC721M2S ActionType = "erc721_m2s"
	ActionERC721S2M ActionType = "erc721_s2m"
	ActionERC721S2S ActionType = "erc721_s2s"

	ActionERC721MetaM2S ActionType = "erc721meta_m2s"
	ActionERC721MetaS2M ActionType = "erc721meta_s2m"
	ActionERC721MetaS2S ActionType = "erc721meta_s2s"

	ActionERC1155M2S ActionType = "erc1155_m2s"
	ActionERC1155S2M ActionType = "erc1155_s2m"
	ActionERC1155S2S ActionType = "erc1155_s2s"

	ActionWrap   ActionType = "wrap"
	ActionUnwrap ActionType = "unwrap"
	ActionUnlock ActionType = "unlock"
)

// Direction is the mainnet/bridge-chain orientation of a transfer hop.
type Direction string

const (
	DirectionM2S Direction = "m2s"
	DirectionS2M Direction = "s2m"
	DirectionS2S Direction = "s2s"
)

// TransferActionType builds the transfer tag for a token standard and a direction.
func TransferActionType(tokenType TokenType, dir Direction) ActionType {
	return ActionType(fmt.Sprintf("%s_%s", tokenType, dir))
}

// StepMetadata is one planned hop. Its position in the plan is the unit of resumability.
type StepMetadata struct {
	Type ActionType `json:"type"`
	From string     `json:"from"`
	To   string     `json:"to"`
	// OnSource is true when the signing wallet has to be attached to From, false for To.
	OnSource bool   `json:"on_source"`
	Headline string `json:"headline"`
	Text     string `json:"text"`
}

// SigningChain returns the chain the wallet must be connected to for this step.
func (s StepMetadata) SigningChain() string {
	if s.OnSource {
		return s.From
	}
	return s.To
}

func (s StepMetadata) String() string {
	return fmt.Sprintf("%s(%s->%s)", s.Type, s.From, s.To)
}
