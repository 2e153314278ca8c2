// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

package registry

// Default rate limits per window, by tier.
const (
	rateRead    = 30
	rateSuggest = 20
	rateLow     = 10
	rateHigh    = 5
)

var (
	everyone      = []Role{RoleDriver, RoleRecruiter, RoleCarrier, RoleAdmin}
	driverOnly    = []Role{RoleDriver}
	recruiterOnly = []Role{RoleRecruiter}
	carrierOnly   = []Role{RoleCarrier}
	adminOnly     = []Role{RoleAdmin}
)

type catalogBuilder struct {
	defs     []RouterDefinition
	bindings []Binding
}

type routerBuilder struct {
	c   *catalogBuilder
	idx int
}

func (c *catalogBuilder) router(domain, description string, roles []Role) *routerBuilder {
	c.defs = append(c.defs, RouterDefinition{Domain: domain, Description: description, Roles: roles})
	return &routerBuilder{c: c, idx: len(c.defs) - 1}
}

func (c *catalogBuilder) flat(domain, description string, roles []Role) *routerBuilder {
	rb := c.router(domain, description, roles)
	c.defs[rb.idx].Flat = true
	return rb
}

func (rb *routerBuilder) bind(action, service, fn string, p Policy, args ...Arg) *routerBuilder {
	d := &rb.c.defs[rb.idx]
	d.Actions = append(d.Actions, action)
	if len(args) == 0 {
		args = []Arg{UserID(), AllParams()}
	}
	rb.c.bindings = append(rb.c.bindings, Binding{
		Domain: d.Domain,
		Action: action,
		Target: Target{Service: service, Function: fn},
		Args:   args,
		Policy: p,
	})
	return rb
}

// tool binds a flat tool with a description and parameter schema.
func (rb *routerBuilder) tool(action, description, service, fn string, p Policy, params map[string]any, args ...Arg) *routerBuilder {
	rb.bind(action, service, fn, p, args...)
	b := &rb.c.bindings[len(rb.c.bindings)-1]
	b.Description = description
	b.Params = params
	return rb
}

func str(desc string) map[string]any { return map[string]any{"type": "string", "description": desc} }
func num(desc string) map[string]any { return map[string]any{"type": "number", "description": desc} }

// Catalog returns the built-in router definitions and bindings.
func Catalog() ([]RouterDefinition, []Binding) {
	c := &catalogBuilder{}

	// --- Flat tools, one per action ---

	c.flat("driver_tools", "Core driver tools for finding carriers and road information.", driverOnly).
		tool("find_matches", "Find carriers matching the driver's location and pay preferences.",
			"carrierMatching", "findMatchingCarriers", Read(10),
			map[string]any{"zip": str("Home ZIP code"), "minCPM": num("Minimum cents per mile"), "maxTurnover": num("Maximum turnover percent")},
			UserID(), AllParams()).
		tool("explain_match", "Explain why a carrier was matched to the driver.",
			"matchExplanationService", "getMatchExplanationForDriver", Read(rateRead),
			map[string]any{"carrierDot": str("Carrier DOT number")},
			Param("carrierDot"), UserID()).
		tool("get_road_conditions", "Current road conditions along a route or state.",
			"roadConditionService", "getRoadConditions", Read(rateRead),
			map[string]any{"state": str("Two-letter state code"), "route": str("Route identifier")},
			AllParams())

	c.flat("recruiter_tools", "Core recruiter tools for candidates and messaging.", recruiterOnly).
		tool("find_matching_drivers", "Search drivers that fit a carrier's hiring criteria.",
			"driverMatching", "findMatchingDrivers", Read(rateRead),
			map[string]any{"carrierDot": str("Carrier DOT number"), "limit": num("Maximum results")},
			Param("carrierDot"), AllParams()).
		tool("get_pipeline_candidates", "List candidates in the recruiter's pipeline.",
			"recruiter_service", "getPipelineCandidates", Read(rateRead),
			map[string]any{"stage": str("Pipeline stage filter")},
			UserID(), AllParams()).
		tool("update_candidate_status", "Move a candidate to a new pipeline stage.",
			"recruiter_service", "updateCandidateStatus", ExecuteLow(rateLow),
			map[string]any{"candidateId": str("Candidate id"), "status": str("New status")},
			Param("candidateId"), Param("status"), UserID()).
		tool("send_message", "Send a message to a driver on the recruiter's behalf.",
			"messaging", "sendMessage", ExecuteHigh(20),
			map[string]any{"to": str("Recipient driver id"), "body": str("Message body"), "channel": str("sms or email")},
			UserID(), Param("to"), Param("body"), ParamOr("channel", "sms")).
		tool("request_availability", "Ask a driver for interview availability.",
			"interviewScheduler", "requestAvailability", ExecuteLow(rateLow),
			map[string]any{"driverId": str("Driver id")},
			UserID(), Param("driverId")).
		tool("log_call_outcome", "Record the outcome of a recruiter call.",
			"callOutcomeService", "logCallOutcome", ExecuteLow(rateLow),
			map[string]any{"driverId": str("Driver id"), "outcome": str("Call outcome")},
			UserID(), AllParams()).
		tool("get_funnel_metrics", "Recruiting funnel conversion metrics.",
			"recruiterAnalyticsService", "getFunnelMetrics", Read(rateRead),
			map[string]any{"period": str("Reporting period")},
			UserID(), AllParams())

	c.flat("carrier_tools", "Core carrier tools for safety and enrichment.", carrierOnly).
		tool("get_carrier_safety", "FMCSA safety snapshot for a carrier.",
			"externalFmcsaApi", "getCarrierSafety", Read(rateRead),
			map[string]any{"dot": str("Carrier DOT number")},
			Param("dot")).
		tool("enrich_carrier", "Draft an AI profile enrichment for a carrier.",
			"aiEnrichment", "enrichCarrier", Suggest(rateSuggest),
			map[string]any{"dot": str("Carrier DOT number")},
			Param("dot"))

	c.flat("admin_tools", "Core admin tools for platform health and remediation.", adminOnly).
		tool("get_metrics", "Platform observability metrics.",
			"observabilityService", "getMetrics", Read(rateRead),
			map[string]any{"window": str("Time window")},
			AllParams()).
		tool("get_drivers", "List drivers on the platform.",
			"admin_service", "getDrivers", Read(rateRead),
			map[string]any{"query": str("Search text")},
			AllParams()).
		tool("get_dashboard_stats", "Admin dashboard statistics.",
			"admin_dashboard_service", "getDashboardStats", Read(rateRead), nil).
		tool("triage_issue", "Suggest a triage for a reported platform issue.",
			"selfHealingService", "triageIssue", Suggest(rateSuggest),
			map[string]any{"issue": str("Issue description")},
			AllParams()).
		tool("execute_remediation", "Run a remediation playbook against production.",
			"selfHealingService", "executeRemediation", ExecuteHigh(3),
			map[string]any{"playbook": str("Playbook id"), "target": str("Affected component")},
			UserID(), AllParams()).
		tool("start_autopilot", "Start autopilot recruiting for a carrier.",
			"autopilotService", "startAutopilot", ExecuteHigh(rateHigh),
			map[string]any{"carrierDot": str("Carrier DOT number")},
			Param("carrierDot"), UserID())

	// --- Driver routers ---

	c.router("driver_cockpit", "Driver job search, applications, messaging, profile and matches.", driverOnly).
		bind("search_jobs", "driverCockpitService", "searchJobs", Read(rateRead), UserID(), AllParams(), AllParams()).
		bind("get_job_details", "driverCockpitService", "getJobDetails", Read(rateRead), Param("jobId"), UserID()).
		bind("quick_apply", "driverCockpitService", "submitApplication", ExecuteHigh(rateHigh), UserID(), Param("jobId"), AllParams()).
		bind("withdraw_application", "driverCockpitService", "withdrawApplication", ExecuteHigh(rateHigh), UserID(), Param("applicationId")).
		bind("get_application_status", "driverCockpitService", "getApplicationStatus", Read(rateRead), UserID(), Param("applicationId")).
		bind("save_job", "driverCockpitService", "saveJob", ExecuteLow(rateLow), UserID(), Param("jobId")).
		bind("get_saved_jobs", "driverCockpitService", "getSavedJobs", Read(rateRead), UserID()).
		bind("send_message", "messagingService", "sendDriverMessage", ExecuteLow(rateLow), UserID(), Param("conversationId"), AllParams()).
		bind("get_unread_count", "messagingService", "getDriverUnreadCount", Read(rateRead), UserID()).
		bind("update_profile", "driverProfileService", "updateDriverProfile", ExecuteLow(rateLow), UserID(), Param("fields")).
		bind("upload_document", "documentService", "recordDriverDocumentUpload", ExecuteHigh(rateHigh), UserID(), AllParams()).
		bind("get_matches", "matchingService", "getDriverMatches", Read(rateRead), UserID(), AllParams()).
		bind("express_interest", "matchingService", "expressDriverInterest", ExecuteLow(rateLow), UserID(), Param("matchId"), ParamOr("message", "")).
		bind("dismiss_match", "matchingService", "dismissMatch", ExecuteLow(rateLow), UserID(), Param("matchId")).
		bind("get_dashboard_summary", "driverCockpitService", "getDashboardSummary", Read(rateRead), UserID())

	c.router("driver_road", "Parking, fuel, weigh stations, rest stops, weather and hazards.", driverOnly).
		bind("find_parking", "parkingService", "findTruckParking", Read(rateRead), AllParams()).
		bind("report_parking", "parkingService", "reportParkingAvailability", ExecuteLow(rateLow), UserID(), AllParams()).
		bind("find_fuel_prices", "fuelService", "findDieselPrices", Read(rateRead), AllParams()).
		bind("calculate_fuel_cost", "fuelService", "calculateTripFuelCost", Read(rateRead), AllParams()).
		bind("get_weigh_station_status", "roadUtilitiesService", "getWeighStationStatus", Read(rateRead), Param("stationId")).
		bind("find_rest_stops", "roadUtilitiesService", "findRestStops", Read(rateRead), AllParams()).
		bind("rate_rest_stop", "roadUtilitiesService", "rateRestStop", ExecuteLow(rateLow), UserID(), Param("restStopId"), Param("rating")).
		bind("report_road_hazard", "roadUtilitiesService", "reportRoadHazard", ExecuteLow(rateLow), UserID(), AllParams()).
		bind("get_weather_forecast", "weatherService", "getWeatherForecast", Read(rateRead), AllParams()).
		bind("get_weather_alerts", "weatherService", "getWeatherAlerts", Read(rateRead), AllParams())

	c.router("driver_community", "Forums, mentorship, pet-friendly locations and health resources.", driverOnly).
		bind("get_forum_posts", "communityService", "getForumPosts", Read(rateRead), AllParams()).
		bind("create_forum_post", "communityService", "createForumPost", ExecuteLow(rateLow), UserID(), AllParams()).
		bind("reply_to_post", "communityService", "replyToPost", ExecuteLow(rateLow), UserID(), Param("postId"), Param("body")).
		bind("find_mentors", "mentorshipService", "findMentors", Read(rateRead), AllParams()).
		bind("request_mentorship", "mentorshipService", "requestMentorship", ExecuteLow(rateLow), UserID(), Param("mentorId")).
		bind("search_pet_friendly_locations", "petFriendlyService", "searchLocations", Read(rateRead), AllParams()).
		bind("get_health_resources", "healthService", "getResourcesByCategory", Read(rateRead), ParamOr("category", "general"))

	c.router("driver_compliance", "Compliance documents, hours of service, ELD sync and training.", driverOnly).
		bind("get_compliance_docs", "documentService", "getDriverComplianceDocs", Read(rateRead), UserID()).
		bind("upload_compliance_doc", "documentService", "uploadComplianceDoc", ExecuteHigh(rateHigh), UserID(), AllParams()).
		bind("check_document_expiry", "documentService", "checkDocumentExpiry", Read(rateRead), UserID(), Param("documentId")).
		bind("get_hos_summary", "hosService", "getHOSSummary", Read(rateRead), UserID()).
		bind("log_hos_entry", "hosService", "logHOSEntry", ExecuteLow(rateLow), UserID(), AllParams()).
		bind("sync_eld_data", "eldService", "syncELDData", ExecuteLow(rateLow), UserID()).
		bind("get_training_courses", "trainingService", "getAvailableCourses", Read(rateRead), AllParams()).
		bind("start_training", "trainingService", "enrollInCourse", ExecuteLow(rateLow), UserID(), Param("courseId"))

	c.router("driver_financial", "Expenses, settlements, taxes and trip costs.", driverOnly).
		bind("log_expense", "driverFinancialService", "logExpense", ExecuteLow(rateLow), UserID(), AllParams()).
		bind("get_expenses", "driverFinancialService", "getExpenses", Read(rateRead), UserID(), AllParams()).
		bind("calculate_trip_cost", "driverFinancialService", "calculateTripCost", Read(rateRead), AllParams()).
		bind("get_settlement_history", "settlementService", "getSettlementHistory", Read(rateRead), UserID()).
		bind("dispute_settlement", "settlementService", "disputeSettlement", ExecuteHigh(rateHigh), UserID(), Param("settlementId"), Param("reason")).
		bind("get_tax_summary", "taxService", "getDriverTaxSummary", Read(rateRead), UserID(), ParamOr("year", nil)).
		bind("get_per_diem_rates", "taxService", "getPerDiemRates", Read(rateRead), AllParams())

	c.router("driver_lifecycle", "Driver timeline, dispositions, match feedback and surveys.", driverOnly).
		bind("get_driver_timeline", "driverLifecycleService", "getDriverTimeline", Read(rateRead), UserID()).
		bind("update_disposition", "driverLifecycleService", "updateDisposition", ExecuteLow(rateLow), UserID(), Param("disposition")).
		bind("submit_match_feedback", "driverLifecycleService", "submitMatchFeedback", ExecuteLow(rateLow), UserID(), AllParams()).
		bind("get_pending_surveys", "surveyService", "getPendingSurveys", Read(rateRead), UserID()).
		bind("submit_survey_response", "surveyService", "submitSurveyResponse", ExecuteLow(rateLow), UserID(), Param("surveyId"), Param("answers"))

	c.router("driver_utility", "Quick responses, reverse alerts, profile strength and market insight.", driverOnly).
		bind("send_quick_response", "driverCockpitService", "sendQuickResponse", ExecuteLow(rateLow), UserID(), AllParams()).
		bind("set_reverse_alert", "alertService", "createReverseAlert", ExecuteLow(rateLow), UserID(), AllParams()).
		bind("get_profile_strength_score", "driverProfileService", "getProfileStrengthScore", Read(rateRead), UserID()).
		bind("get_market_insights", "marketIntelService", "getDriverMarketInsights", Read(rateRead), UserID(), AllParams())

	// --- Recruiter routers ---

	c.router("recruiter_outreach", "Campaigns across SMS, email, social and voice, plus job syndication.", recruiterOnly).
		bind("create_sms_campaign", "recruiterOutreachService", "createSmsCampaign", ExecuteHigh(rateHigh)).
		bind("create_email_campaign", "recruiterOutreachService", "createEmailCampaign", ExecuteHigh(rateHigh)).
		bind("create_social_post", "socialPostingService", "createSocialPost", ExecuteHigh(rateHigh)).
		bind("create_voice_campaign", "voiceCampaignService", "createVoiceCampaign", ExecuteHigh(rateHigh)).
		bind("syndicate_job_posting", "jobSyndicationService", "syndicateJob", ExecuteHigh(rateHigh)).
		bind("get_campaign_status", "recruiterOutreachService", "getCampaignStatus", Read(rateRead)).
		bind("get_campaign_history", "recruiterOutreachService", "getCampaignHistory", Read(rateRead)).
		bind("pause_campaign", "recruiterOutreachService", "pauseCampaign", ExecuteLow(rateLow)).
		bind("resume_campaign", "recruiterOutreachService", "resumeCampaign", ExecuteLow(rateLow)).
		bind("get_message_templates", "recruiterOutreachService", "getMessageTemplates", Read(rateRead)).
		bind("create_message_template", "recruiterOutreachService", "createMessageTemplate", ExecuteLow(rateLow)).
		bind("preview_campaign_reach", "recruiterOutreachService", "previewCampaignReach", Suggest(rateSuggest))

	c.router("recruiter_analytics", "Funnel, source ROI, cost-per-hire, forecasts and competitor intel.", recruiterOnly).
		bind("get_funnel_analysis", "recruiterAnalyticsService", "getFunnelAnalysis", Read(rateRead)).
		bind("get_source_roi", "recruiterAnalyticsService", "getSourceRoi", Read(rateRead)).
		bind("get_cph_metrics", "recruiterAnalyticsService", "getCostPerHire", Read(rateRead)).
		bind("get_time_to_fill", "recruiterAnalyticsService", "getTimeToFill", Read(rateRead)).
		bind("get_drop_off_analysis", "recruiterAnalyticsService", "getDropOffAnalysis", Read(rateRead)).
		bind("get_ml_forecast", "recruiterAnalyticsService", "getMlForecast", Read(rateRead)).
		bind("get_competitor_intel", "competitorIntelService", "getCompetitorIntel", Read(rateRead)).
		bind("get_attribution_report", "recruiterAnalyticsService", "getAttributionReport", Read(rateRead)).
		bind("get_recruiter_scorecard", "recruiterAnalyticsService", "getRecruiterScorecard", Read(rateRead)).
		bind("export_analytics", "recruiterAnalyticsService", "exportAnalytics", ExecuteLow(rateLow))

	c.router("recruiter_onboarding", "Onboarding workflows, documents, background checks, drug tests and orientation.", recruiterOnly).
		bind("create_onboarding_workflow", "onboardingWorkflowService", "createWorkflow", ExecuteLow(rateLow)).
		bind("get_onboarding_status", "onboardingWorkflowService", "getWorkflowStatus", Read(rateRead)).
		bind("request_documents", "documentCollectionService", "requestDocuments", ExecuteHigh(rateHigh)).
		bind("get_document_collection_status", "documentCollectionService", "getCollectionStatus", Read(rateRead)).
		bind("initiate_bgc", "backgroundCheckService", "initiateCheck", ExecuteHigh(rateHigh)).
		bind("get_bgc_status", "backgroundCheckService", "getCheckStatus", Read(rateRead)).
		bind("initiate_drug_test", "drugTestService", "initiateTest", ExecuteHigh(rateHigh)).
		bind("get_drug_test_status", "drugTestService", "getTestStatus", Read(rateRead)).
		bind("send_esign_request", "esignService", "sendSignatureRequest", ExecuteHigh(rateHigh)).
		bind("get_esign_status", "esignService", "getSignatureStatus", Read(rateRead)).
		bind("schedule_orientation", "orientationService", "scheduleOrientation", ExecuteHigh(rateHigh)).
		bind("get_orientation_slots", "orientationService", "getAvailableSlots", Read(rateRead))

	c.router("recruiter_pipeline", "Pipeline automation, saved searches, stale candidates and interventions.", recruiterOnly).
		bind("get_stale_candidates", "pipelineService", "getStaleCandidates", Read(rateRead)).
		bind("apply_intervention", "pipelineService", "applyIntervention", ExecuteHigh(rateHigh)).
		bind("get_intervention_templates", "pipelineService", "getInterventionTemplates", Read(rateRead)).
		bind("bulk_update_pipeline", "pipelineService", "bulkUpdate", ExecuteHigh(rateHigh)).
		bind("create_pipeline_automation", "pipelineAutomationService", "createAutomation", ExecuteLow(rateLow)).
		bind("get_pipeline_automations", "pipelineAutomationService", "getAutomations", Read(rateRead)).
		bind("save_driver_search", "savedSearchService", "saveSearch", ExecuteLow(rateLow)).
		bind("get_saved_searches", "savedSearchService", "getSavedSearches", Read(rateRead)).
		bind("run_saved_search", "savedSearchService", "runSavedSearch", Read(rateRead)).
		bind("get_call_outcomes_summary", "callOutcomeService", "getOutcomesSummary", Read(rateRead))

	c.router("recruiter_retention", "Retention risk, watchlists, interventions and turnover analytics.", recruiterOnly).
		bind("get_retention_risks", "retentionService", "getRetentionRisks", Read(rateRead)).
		bind("get_risk_score_detail", "retentionService", "getRiskScoreDetail", Read(rateRead)).
		bind("create_retention_intervention", "retentionService", "createIntervention", ExecuteHigh(rateHigh)).
		bind("get_retention_history", "retentionService", "getRetentionHistory", Read(rateRead)).
		bind("add_to_watchlist", "retentionService", "addToWatchlist", ExecuteLow(rateLow)).
		bind("remove_from_watchlist", "retentionService", "removeFromWatchlist", ExecuteLow(rateLow)).
		bind("get_watchlist", "retentionService", "getWatchlist", Read(rateRead)).
		bind("get_turnover_analytics", "retentionService", "getTurnoverAnalytics", Read(rateRead))

	c.router("recruiter_reverse_match", "Reverse driver search, match subscriptions and billing.", recruiterOnly).
		bind("reverse_search_drivers", "reverseMatchService", "searchDrivers", Read(rateRead)).
		bind("get_reverse_match_scores", "reverseMatchService", "getMatchScores", Read(rateRead)).
		bind("create_match_subscription", "reverseMatchService", "createSubscription", ExecuteLow(rateLow)).
		bind("get_match_subscriptions", "reverseMatchService", "getSubscriptions", Read(rateRead)).
		bind("delete_match_subscription", "reverseMatchService", "deleteSubscription", ExecuteLow(rateLow)).
		bind("get_subscription_alerts", "reverseMatchService", "getSubscriptionAlerts", Read(rateRead)).
		bind("get_stripe_billing", "reverseMatchBillingService", "getBilling", Read(rateRead)).
		bind("upgrade_subscription", "reverseMatchBillingService", "upgradeSubscription", ExecuteHigh(rateHigh))

	c.router("recruiter_paid_media", "Paid media campaign creation and budget management.", recruiterOnly).
		bind("create_campaign_draft", "paidMediaService", "createCampaignDraft", Suggest(rateSuggest)).
		bind("create_campaign", "paidMediaService", "createCampaign", ExecuteHigh(rateHigh)).
		bind("attach_creative_to_ad", "paidMediaService", "attachCreative", ExecuteLow(rateLow)).
		bind("update_ad_set_budget", "paidMediaService", "updateAdSetBudget", ExecuteHigh(rateHigh))

	c.router("recruiter_paid_media_analytics", "Paid media insights and optimisation suggestions.", recruiterOnly).
		bind("get_insights_campaign_level", "paidMediaAnalyticsService", "getCampaignInsights", Read(rateRead)).
		bind("create_async_report_job", "paidMediaAnalyticsService", "createReportJob", ExecuteLow(rateLow)).
		bind("suggest_audience_narrowing", "paidMediaAnalyticsService", "suggestAudienceNarrowing", Suggest(rateSuggest)).
		bind("apply_bid_adjustment", "paidMediaAnalyticsService", "applyBidAdjustment", ExecuteHigh(rateHigh)).
		bind("apply_budget_reallocation", "paidMediaAnalyticsService", "applyBudgetReallocation", ExecuteHigh(rateHigh)).
		bind("rotate_creative_variant", "paidMediaAnalyticsService", "rotateCreative", ExecuteLow(rateLow))

	// --- Carrier routers ---

	c.router("carrier_fleet", "Fleet roster, equipment, utilization, capacity and driver scorecards.", carrierOnly).
		bind("get_fleet_roster", "carrierFleetService", "getFleetRoster", Read(rateRead)).
		bind("get_driver_availability", "carrierFleetService", "getDriverAvailability", Read(rateRead)).
		bind("get_driver_scorecard", "carrierFleetService", "getDriverScorecard", Read(rateRead)).
		bind("get_equipment_list", "carrierFleetService", "getEquipmentList", Read(rateRead)).
		bind("get_equipment_status", "carrierFleetService", "getEquipmentStatus", Read(rateRead)).
		bind("update_equipment_status", "carrierFleetService", "updateEquipmentStatus", ExecuteLow(rateLow)).
		bind("assign_driver_to_unit", "carrierFleetService", "assignDriverToUnit", ExecuteLow(rateLow)).
		bind("get_fleet_utilization", "carrierFleetService", "getFleetUtilization", Read(rateRead)).
		bind("get_fleet_capacity", "carrierFleetService", "getFleetCapacity", Read(rateRead)).
		bind("get_fleet_costs", "carrierFleetService", "getFleetCosts", Read(rateRead)).
		bind("get_fleet_alerts", "carrierFleetService", "getFleetAlerts", Read(rateRead)).
		bind("get_eld_fleet_summary", "carrierFleetService", "getEldFleetSummary", Read(rateRead))

	c.router("carrier_compliance", "CSA scores, DQ files, document vault, incidents and audit readiness.", carrierOnly).
		bind("get_csa_scores", "carrierComplianceService", "getCsaScores", Read(rateRead)).
		bind("get_csa_alerts", "carrierComplianceService", "getCsaAlerts", Read(rateRead)).
		bind("get_dq_tracker", "carrierComplianceService", "getDqTracker", Read(rateRead)).
		bind("get_dq_gaps", "carrierComplianceService", "getDqGaps", Read(rateRead)).
		bind("get_document_vault", "carrierComplianceService", "getDocumentVault", Read(rateRead)).
		bind("upload_carrier_document", "carrierComplianceService", "uploadDocument", ExecuteHigh(rateHigh)).
		bind("get_compliance_calendar", "carrierComplianceService", "getComplianceCalendar", Read(rateRead)).
		bind("log_incident", "carrierComplianceService", "logIncident", ExecuteLow(rateLow)).
		bind("get_incident_history", "carrierComplianceService", "getIncidentHistory", Read(rateRead)).
		bind("get_audit_readiness", "carrierComplianceService", "getAuditReadiness", Read(rateRead))

	c.router("carrier_communication", "Announcements, policies, recognitions and driver feedback.", carrierOnly).
		bind("create_announcement", "carrierCommunicationService", "createAnnouncement", ExecuteHigh(rateHigh)).
		bind("get_announcements", "carrierCommunicationService", "getAnnouncements", Read(rateRead)).
		bind("create_policy_update", "carrierCommunicationService", "createPolicyUpdate", ExecuteHigh(rateHigh)).
		bind("get_policies", "carrierCommunicationService", "getPolicies", Read(rateRead)).
		bind("create_recognition", "carrierCommunicationService", "createRecognition", ExecuteLow(rateLow)).
		bind("get_recognitions", "carrierCommunicationService", "getRecognitions", Read(rateRead)).
		bind("create_feedback_request", "carrierCommunicationService", "createFeedbackRequest", ExecuteLow(rateLow)).
		bind("get_feedback_responses", "carrierCommunicationService", "getFeedbackResponses", Read(rateRead))

	c.router("carrier_journey", "Carrier onboarding, identity, subscription and payments.", carrierOnly).
		bind("get_onboarding_flow", "carrierJourneyService", "getOnboardingFlow", Read(rateRead)).
		bind("get_carrier_navigation", "carrierJourneyService", "getNavigation", Read(rateRead)).
		bind("update_carrier_identity", "carrierJourneyService", "updateIdentity", ExecuteLow(rateLow)).
		bind("get_subscription_status", "carrierJourneyService", "getSubscriptionStatus", Read(rateRead)).
		bind("get_payment_history", "carrierJourneyService", "getPaymentHistory", Read(rateRead)).
		bind("get_checkout_session", "carrierJourneyService", "getCheckoutSession", ExecuteHigh(rateHigh)).
		bind("initiate_deposit", "carrierJourneyService", "initiateDeposit", ExecuteHigh(rateHigh)).
		bind("upgrade_carrier_plan", "carrierJourneyService", "upgradePlan", ExecuteHigh(rateHigh))

	// --- Admin routers ---

	c.router("admin_business_ops", "Revenue, billing, invoices, commissions and churn metrics.", adminOnly).
		bind("get_revenue_dashboard", "adminBusinessOpsAgentService", "getRevenueDashboard", Read(rateRead)).
		bind("get_billing_overview", "adminBusinessOpsAgentService", "getBillingOverview", Read(rateRead)).
		bind("get_invoices", "adminBusinessOpsAgentService", "getInvoices", Read(rateRead)).
		bind("create_invoice", "adminBusinessOpsAgentService", "createInvoice", ExecuteHigh(rateHigh)).
		bind("get_commission_report", "adminBusinessOpsAgentService", "getCommissionReport", Read(rateRead)).
		bind("approve_commission", "adminBusinessOpsAgentService", "approveCommission", ExecuteHigh(rateHigh)).
		bind("get_mrr_metrics", "adminBusinessOpsAgentService", "getMrrMetrics", Read(rateRead)).
		bind("get_churn_metrics", "adminBusinessOpsAgentService", "getChurnMetrics", Read(rateRead)).
		bind("get_arpu_breakdown", "adminBusinessOpsAgentService", "getArpuBreakdown", Read(rateRead)).
		bind("export_financial_report", "adminBusinessOpsAgentService", "exportFinancialReport", ExecuteLow(rateLow))

	c.router("admin_platform_config", "Feature flags, A/B tests, templates, notification rules and platform config.", adminOnly).
		bind("get_feature_flags", "adminPlatformConfigAgentService", "getFeatureFlags", Read(rateRead)).
		bind("toggle_feature_flag", "adminPlatformConfigAgentService", "toggleFeatureFlag", ExecuteHigh(rateHigh)).
		bind("get_ab_tests", "adminPlatformConfigAgentService", "getAbTests", Read(rateRead)).
		bind("create_ab_test", "adminPlatformConfigAgentService", "createAbTest", ExecuteLow(rateLow)).
		bind("get_email_templates", "adminPlatformConfigAgentService", "getEmailTemplates", Read(rateRead)).
		bind("update_email_template", "adminPlatformConfigAgentService", "updateEmailTemplate", ExecuteLow(rateLow)).
		bind("get_notification_rules", "adminPlatformConfigAgentService", "getNotificationRules", Read(rateRead)).
		bind("update_notification_rule", "adminPlatformConfigAgentService", "updateNotificationRule", ExecuteLow(rateLow)).
		bind("get_platform_config", "adminPlatformConfigAgentService", "getPlatformConfig", Read(rateRead)).
		bind("update_platform_config", "adminPlatformConfigAgentService", "updatePlatformConfig", ExecuteHigh(rateHigh))

	c.router("admin_portal", "Users, moderation, AI dashboard, compliance audit and login activity.", adminOnly).
		bind("get_admin_dashboard", "adminPortalAgentService", "getAdminDashboard", Read(rateRead)).
		bind("get_user_list", "adminPortalAgentService", "getUserList", Read(rateRead)).
		bind("get_user_detail", "adminPortalAgentService", "getUserDetail", Read(rateRead)).
		bind("suspend_user", "adminPortalAgentService", "suspendUser", ExecuteHigh(rateHigh)).
		bind("unsuspend_user", "adminPortalAgentService", "unsuspendUser", ExecuteHigh(rateHigh)).
		bind("get_moderation_queue", "adminPortalAgentService", "getModerationQueue", Read(rateRead)).
		bind("moderate_content", "adminPortalAgentService", "moderateContent", ExecuteLow(rateLow)).
		bind("get_ai_dashboard", "adminPortalAgentService", "getAiDashboard", Read(rateRead)).
		bind("get_compliance_audit", "adminPortalAgentService", "getComplianceAudit", Read(rateRead)).
		bind("get_login_activity", "adminPortalAgentService", "getLoginActivity", Read(rateRead))

	c.router("admin_support", "Support tickets, knowledge base, NPS and CSAT.", adminOnly).
		bind("get_support_tickets", "adminSupportAgentService", "getSupportTickets", Read(rateRead)).
		bind("get_ticket_detail", "adminSupportAgentService", "getTicketDetail", Read(rateRead)).
		bind("update_ticket_status", "adminSupportAgentService", "updateTicketStatus", ExecuteLow(rateLow)).
		bind("assign_ticket", "adminSupportAgentService", "assignTicket", ExecuteLow(rateLow)).
		bind("get_knowledge_base", "adminSupportAgentService", "getKnowledgeBase", Read(rateRead)).
		bind("create_kb_article", "adminSupportAgentService", "createKbArticle", ExecuteLow(rateLow)).
		bind("get_nps_scores", "adminSupportAgentService", "getNpsScores", Read(rateRead)).
		bind("get_csat_report", "adminSupportAgentService", "getCsatReport", Read(rateRead))

	c.router("admin_gamification", "XP rules, achievements, challenges and leaderboards.", adminOnly).
		bind("get_gamification_config", "adminGamificationAgentService", "getConfig", Read(rateRead)).
		bind("update_xp_rules", "adminGamificationAgentService", "updateXpRules", ExecuteHigh(rateHigh)).
		bind("get_achievement_list", "adminGamificationAgentService", "getAchievementList", Read(rateRead)).
		bind("create_achievement", "adminGamificationAgentService", "createAchievement", ExecuteLow(rateLow)).
		bind("create_challenge", "adminGamificationAgentService", "createChallenge", ExecuteLow(rateLow)).
		bind("get_active_challenges", "adminGamificationAgentService", "getActiveChallenges", Read(rateRead)).
		bind("get_global_leaderboard", "adminGamificationAgentService", "getGlobalLeaderboard", Read(rateRead)).
		bind("get_gamification_analytics", "adminGamificationAgentService", "getAnalytics", Read(rateRead))

	c.router("admin_feature_adoption", "Feature adoption, funnels, health, stickiness and cohorts.", adminOnly).
		bind("get_feature_adoption", "adminFeatureAdoptionAgentService", "getFeatureAdoption", Read(rateRead)).
		bind("get_adoption_funnels", "adminFeatureAdoptionAgentService", "getAdoptionFunnels", Read(rateRead)).
		bind("get_feature_health", "adminFeatureAdoptionAgentService", "getFeatureHealth", Read(rateRead)).
		bind("get_stickiness_metrics", "adminFeatureAdoptionAgentService", "getStickinessMetrics", Read(rateRead)).
		bind("get_adoption_cohorts", "adminFeatureAdoptionAgentService", "getAdoptionCohorts", Read(rateRead)).
		bind("create_adoption_campaign", "adminFeatureAdoptionAgentService", "createAdoptionCampaign", ExecuteHigh(rateHigh))

	// --- Cross-role routers ---

	c.router("cross_role_utility", "Mutual interest, benchmarks, industry trends and market value.", everyone).
		bind("get_mutual_interest", "crossRoleUtilityAgentService", "getMutualInterest", Read(10)).
		bind("get_retention_for_carrier", "crossRoleUtilityAgentService", "getRetentionForCarrier", Read(rateRead)).
		bind("get_match_explanation", "crossRoleUtilityAgentService", "getMatchExplanation", Read(rateRead)).
		bind("get_recruiter_health", "crossRoleUtilityAgentService", "getRecruiterHealth", Read(rateRead)).
		bind("get_platform_benchmarks", "crossRoleUtilityAgentService", "getPlatformBenchmarks", Read(rateRead)).
		bind("get_industry_trends", "crossRoleUtilityAgentService", "getIndustryTrends", Read(rateRead)).
		bind("get_regional_analysis", "crossRoleUtilityAgentService", "getRegionalAnalysis", Read(rateRead)).
		bind("get_seasonal_patterns", "crossRoleUtilityAgentService", "getSeasonalPatterns", Read(rateRead)).
		bind("compare_carriers", "crossRoleUtilityAgentService", "compareCarriers", Read(rateRead)).
		bind("get_driver_market_value", "crossRoleUtilityAgentService", "getDriverMarketValue", Read(rateRead))

	c.router("observability_ops", "Agent tracing, tool performance, scoring accuracy and replay.", adminOnly).
		bind("get_tracing_dashboard", "adminObservabilityAgentService", "getTracingDashboard", Read(rateRead)).
		bind("get_tool_performance", "adminObservabilityAgentService", "getToolPerformance", Read(rateRead)).
		bind("get_scoring_accuracy", "adminObservabilityAgentService", "getScoringAccuracy", Read(rateRead)).
		bind("recalibrate_scoring", "adminObservabilityAgentService", "recalibrateScoring", ExecuteHigh(3)).
		bind("get_agent_replay", "adminObservabilityAgentService", "getAgentReplay", Read(rateRead))

	c.router("external_api", "Partner API queries, usage, health and key management.", everyone).
		bind("query_safety_api", "externalApiAgentService", "querySafetyApi", Read(rateRead)).
		bind("query_intel_api", "externalApiAgentService", "queryIntelApi", Read(rateRead)).
		bind("query_ops_api", "externalApiAgentService", "queryOpsApi", Read(rateRead)).
		bind("query_matching_api", "externalApiAgentService", "queryMatchingApi", Read(rateRead)).
		bind("query_document_api", "externalApiAgentService", "queryDocumentApi", Read(rateRead)).
		bind("query_engagement_api", "externalApiAgentService", "queryEngagementApi", Read(rateRead)).
		bind("get_api_usage", "externalApiAgentService", "getApiUsage", Read(rateRead)).
		bind("get_api_health", "externalApiAgentService", "getApiHealth", Read(rateRead)).
		bind("configure_api_key", "externalApiAgentService", "configureApiKey", ExecuteHigh(rateHigh)).
		bind("test_api_endpoint", "externalApiAgentService", "testApiEndpoint", ExecuteLow(rateLow))

	c.router("financial_extended", "Expense tracking, settlements, trip cost, tax and take-home estimates.", []Role{RoleDriver, RoleCarrier}).
		bind("track_expenses", "financialExtAgentService", "trackExpenses", ExecuteLow(rateLow)).
		bind("get_expense_report", "financialExtAgentService", "getExpenseReport", Read(rateRead)).
		bind("get_settlement_detail", "financialExtAgentService", "getSettlementDetail", Read(rateRead)).
		bind("calculate_trip_cost", "financialExtAgentService", "calculateTripCost", Read(rateRead)).
		bind("get_tax_summary", "financialExtAgentService", "getTaxSummary", Read(rateRead)).
		bind("get_irs_per_diem", "financialExtAgentService", "getIrsPerDiem", Read(rateRead)).
		bind("get_fuel_tax_report", "financialExtAgentService", "getFuelTaxReport", Read(rateRead)).
		bind("estimate_take_home", "financialExtAgentService", "estimateTakeHome", Read(rateRead))

	c.router("lifecycle_ops", "Timelines, dispositions, exit surveys and algorithm feedback.", []Role{RoleDriver, RoleRecruiter, RoleAdmin}).
		bind("get_driver_timeline", "lifecycleOpsAgentService", "getDriverTimeline", Read(rateRead)).
		bind("get_carrier_timeline", "lifecycleOpsAgentService", "getCarrierTimeline", Read(rateRead)).
		bind("update_disposition", "lifecycleOpsAgentService", "updateDisposition", ExecuteLow(rateLow)).
		bind("get_disposition_options", "lifecycleOpsAgentService", "getDispositionOptions", Read(rateRead)).
		bind("create_exit_survey", "lifecycleOpsAgentService", "createExitSurvey", ExecuteHigh(rateHigh)).
		bind("get_survey_responses", "lifecycleOpsAgentService", "getSurveyResponses", Read(rateRead)).
		bind("submit_algorithm_feedback", "lifecycleOpsAgentService", "submitAlgorithmFeedback", ExecuteLow(rateLow)).
		bind("get_feedback_summary", "lifecycleOpsAgentService", "getFeedbackSummary", Read(rateRead)).
		bind("get_lifecycle_analytics", "lifecycleOpsAgentService", "getLifecycleAnalytics", Read(rateRead)).
		bind("get_cohort_retention", "lifecycleOpsAgentService", "getCohortRetention", Read(rateRead))

	return c.defs, c.bindings
}

// Default builds the registry from the built-in catalogue.
func Default(opts ...Option) (*Registry, error) {
	defs, bindings := Catalog()
	return New(defs, bindings, opts...)
}
