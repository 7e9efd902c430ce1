package nodes

// Agent graph node names.
const (
	NodeAssembler    = "assembler"
	NodeAgentModel   = "agent_model"
	NodeToolExecutor = "tool_executor"
)
