package handlers

import (
	"github.com/spec-kit/workflow-service/internal/api/dto"
	"github.com/spec-kit/workflow-service/internal/domain"
	"github.com/spec-kit/workflow-service/internal/service"
)

func stageResponse(stage *domain.Stage) dto.StageResponse {
	resp := dto.StageResponse{
		ID:                  stage.ID,
		ProcessID:           stage.ProcessID,
		ParentStageID:       stage.ParentStageID,
		Name:                stage.Name,
		Description:         stage.Description,
		Color:               stage.Color,
		OrderIndex:          stage.OrderIndex,
		Priority:            stage.Priority,
		IsInitial:           stage.IsInitial,
		IsFinal:             stage.IsFinal,
		SLAHours:            stage.SLAHours,
		RequiredPermissions: stage.RequiredPermissions,
		AutomationRules:     stage.AutomationRules,
		Settings:            stage.Settings,
		CreatedAt:           stage.CreatedAt,
		UpdatedAt:           stage.UpdatedAt,
	}
	if resp.RequiredPermissions == nil {
		resp.RequiredPermissions = []string{}
	}
	if resp.AutomationRules == nil {
		resp.AutomationRules = []map[string]any{}
	}
	if resp.Settings == nil {
		resp.Settings = map[string]any{}
	}
	if stage.AllowedTransitions != nil {
		resp.AllowedTransitions = transitionResponses(stage.AllowedTransitions)
	}
	return resp
}

func stageResponses(stages []domain.Stage) []dto.StageResponse {
	items := make([]dto.StageResponse, 0, len(stages))
	for i := range stages {
		items = append(items, stageResponse(&stages[i]))
	}
	return items
}

func transitionResponses(edges []domain.Transition) []dto.TransitionResponse {
	items := make([]dto.TransitionResponse, 0, len(edges))
	for _, edge := range edges {
		items = append(items, dto.TransitionResponse{
			ID:          edge.ID,
			ToStageID:   edge.ToStageID,
			ToStageName: edge.ToStageName,
			Type:        string(edge.Type),
			IsDefault:   edge.IsDefault,
			OrderIndex:  edge.OrderIndex,
			DisplayName: edge.DisplayName,
			Conditions:  edge.Conditions,
		})
	}
	return items
}

func stageTree(nodes []service.StageNode) []dto.StageTreeNode {
	out := make([]dto.StageTreeNode, 0, len(nodes))
	for i := range nodes {
		out = append(out, dto.StageTreeNode{
			StageResponse: stageResponse(&nodes[i].Stage),
			Children:      stageResponses(nodes[i].Children),
		})
	}
	return out
}

func stageRef(ref domain.StageRef) dto.StageRefResponse {
	return dto.StageRefResponse{ID: ref.ID, Name: ref.Name, ProcessID: ref.ProcessID, IsFinal: ref.IsFinal}
}

func moveResponse(result *service.MoveResult) dto.MoveTicketResponse {
	ticket := result.Ticket
	movement := result.Movement
	resp := dto.MoveTicketResponse{
		Ticket: dto.TicketSummary{
			ID:             ticket.ID,
			ProcessID:      ticket.ProcessID,
			Title:          ticket.Title,
			CurrentStageID: ticket.CurrentStageID,
			Status:         ticket.Status,
			CompletedAt:    ticket.CompletedAt,
			UpdatedAt:      ticket.UpdatedAt,
		},
		Movement: dto.MovementResponse{
			ToStage:       stageRef(movement.ToStage),
			ActorID:       movement.Actor.ID,
			ActorName:     movement.Actor.DisplayName(),
			MovedAt:       movement.MovedAt,
			AutoCompleted: movement.AutoCompleted,
			AutoReopened:  movement.AutoReopened,
			CrossProcess:  movement.CrossProcess,
			SLADueAt:      movement.SLADueAt,
		},
	}
	if movement.FromStage != nil {
		from := stageRef(*movement.FromStage)
		resp.Movement.FromStage = &from
	}
	if result.Comment != nil {
		resp.Comment = &dto.CommentResponse{
			ID:        result.Comment.ID,
			Kind:      result.Comment.Kind,
			Body:      result.Comment.Body,
			CreatedAt: result.Comment.CreatedAt,
		}
	}
	return resp
}
