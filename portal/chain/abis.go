package chain

// Minimal ABI fragments of the bridge contract layer and the token standards it moves.
// Only the methods the orchestrator calls are listed.

const erc20ABI = `[
	{"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"allowance","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"approve","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"decimals","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]}
]`

const erc721ABI = `[
	{"type":"function","name":"ownerOf","stateMutability":"view","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"getApproved","stateMutability":"view","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"approve","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address"},{"name":"tokenId","type":"uint256"}],"outputs":[]}
]`

const erc1155ABI = `[
	{"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"account","type":"address"},{"name":"id","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"isApprovedForAll","stateMutability":"view","inputs":[{"name":"account","type":"address"},{"name":"operator","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"setApprovalForAll","stateMutability":"nonpayable","inputs":[{"name":"operator","type":"address"},{"name":"approved","type":"bool"}],"outputs":[]}
]`

const wrapperABI = `[
	{"type":"function","name":"depositFor","stateMutability":"nonpayable","inputs":[{"name":"account","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"withdrawTo","stateMutability":"nonpayable","inputs":[{"name":"account","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]}
]`

const depositBoxABI = `[
	{"type":"function","name":"deposit","stateMutability":"payable","inputs":[{"name":"schainName","type":"string"}],"outputs":[]},
	{"type":"function","name":"getFunds","stateMutability":"nonpayable","inputs":[],"outputs":[]},
	{"type":"function","name":"approveTransfers","stateMutability":"view","inputs":[{"name":"user","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"depositERC20","stateMutability":"nonpayable","inputs":[{"name":"schainName","type":"string"},{"name":"erc20OnMainnet","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"depositERC721","stateMutability":"nonpayable","inputs":[{"name":"schainName","type":"string"},{"name":"erc721OnMainnet","type":"address"},{"name":"tokenId","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"depositERC721WithMetadata","stateMutability":"nonpayable","inputs":[{"name":"schainName","type":"string"},{"name":"erc721OnMainnet","type":"address"},{"name":"tokenId","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"depositERC1155","stateMutability":"nonpayable","inputs":[{"name":"schainName","type":"string"},{"name":"erc1155OnMainnet","type":"address"},{"name":"id","type":"uint256"},{"name":"amount","type":"uint256"}],"outputs":[]}
]`

const tokenManagerABI = `[
	{"type":"function","name":"exitToMain","stateMutability":"nonpayable","inputs":[{"name":"amount","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"exitToMainERC20","stateMutability":"nonpayable","inputs":[{"name":"contractOnMainnet","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"transferToSchainERC20","stateMutability":"nonpayable","inputs":[{"name":"targetSchainName","type":"string"},{"name":"contractOnMainnet","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"exitToMainERC721","stateMutability":"nonpayable","inputs":[{"name":"contractOnMainnet","type":"address"},{"name":"tokenId","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"transferToSchainERC721","stateMutability":"nonpayable","inputs":[{"name":"targetSchainName","type":"string"},{"name":"contractOnMainnet","type":"address"},{"name":"tokenId","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"exitToMainERC1155","stateMutability":"nonpayable","inputs":[{"name":"contractOnMainnet","type":"address"},{"name":"id","type":"uint256"},{"name":"amount","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"transferToSchainERC1155","stateMutability":"nonpayable","inputs":[{"name":"targetSchainName","type":"string"},{"name":"contractOnMainnet","type":"address"},{"name":"id","type":"uint256"},{"name":"amount","type":"uint256"}],"outputs":[]}
]`

const communityPoolABI = `[
	{"type":"function","name":"getBalance","stateMutability":"view","inputs":[{"name":"user","type":"address"},{"name":"schainName","type":"string"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"checkUserBalance","stateMutability":"view","inputs":[{"name":"schainHash","type":"bytes32"},{"name":"receiver","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"getRecommendedRechargeAmount","stateMutability":"view","inputs":[{"name":"schainHash","type":"bytes32"},{"name":"receiver","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"rechargeUserWallet","stateMutability":"payable","inputs":[{"name":"schainName","type":"string"},{"name":"user","type":"address"}],"outputs":[]},
	{"type":"function","name":"withdrawFunds","stateMutability":"nonpayable","inputs":[{"name":"schainName","type":"string"},{"name":"amount","type":"uint256"}],"outputs":[]}
]`

const communityLockerABI = `[
	{"type":"function","name":"activeUsers","stateMutability":"view","inputs":[{"name":"user","type":"address"}],"outputs":[{"name":"","type":"bool"}]}
]`
